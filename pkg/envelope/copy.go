package envelope

import (
	"errors"
	"fmt"
	"reflect"
	"time"
)

// ErrUnsafeArgument is returned by CheckArgs for argument types that cannot
// be deep-copied into an envelope.
var ErrUnsafeArgument = errors.New("envelope: argument type cannot cross goroutines by copy")

// Copier lets a type control how it is copied into an envelope. DeepCopy
// cannot reach unexported fields, so CheckArgs rejects types whose unexported
// state holds references unless they implement Copier.
type Copier interface {
	DeepCopy() any
}

var copierType = reflect.TypeOf((*Copier)(nil)).Elem()

// valueTypes hold unexported references that are never mutated through a
// copy, so a shallow copy is safe.
var valueTypes = map[reflect.Type]bool{
	reflect.TypeOf((*time.Time)(nil)).Elem(): true,
}

// DeepCopy returns a copy of v that shares no reachable exported memory with
// it. Pointers are followed and re-allocated, so the copy of a *T points at a
// new T. Shared pointers inside v stay shared inside the copy.
//
// Values held in interfaces are copied by their dynamic type without being
// checked; use Copy when v may carry unsafe values at run time.
func DeepCopy[T any](v T) T {
	out, _ := Copy(v)
	return out
}

// Copy is DeepCopy that also rejects, with ErrUnsafeArgument, interface
// values whose dynamic type CheckArgs would refuse.
func Copy[T any](v T) (T, error) {
	src := reflect.ValueOf(&v).Elem()
	dst := reflect.New(src.Type()).Elem()

	c := copier{seen: make(map[visit]reflect.Value)}
	c.copy(dst, src)
	return *(dst.Addr().Interface().(*T)), c.err
}

type visit struct {
	ptr uintptr
	typ reflect.Type
}

type copier struct {
	seen map[visit]reflect.Value
	err  error
}

func (c *copier) copy(dst, src reflect.Value) {
	if c.viaCopier(dst, src) {
		return
	}

	switch src.Kind() {
	case reflect.Pointer:
		if src.IsNil() {
			return
		}
		key := visit{ptr: src.Pointer(), typ: src.Type()}
		if p, ok := c.seen[key]; ok {
			dst.Set(p)
			return
		}
		p := reflect.New(src.Type().Elem())
		c.seen[key] = p
		c.copy(p.Elem(), src.Elem())
		dst.Set(p)

	case reflect.Interface:
		if src.IsNil() {
			return
		}
		inner := src.Elem()
		if c.err == nil {
			c.err = CheckArgs(inner.Type())
		}
		cp := reflect.New(inner.Type()).Elem()
		c.copy(cp, inner)
		dst.Set(cp)

	case reflect.Slice:
		if src.IsNil() {
			return
		}
		s := reflect.MakeSlice(src.Type(), src.Len(), src.Cap())
		if flat(src.Type().Elem()) {
			reflect.Copy(s, src)
		} else {
			for i := 0; i < src.Len(); i++ {
				c.copy(s.Index(i), src.Index(i))
			}
		}
		dst.Set(s)

	case reflect.Array:
		if flat(src.Type().Elem()) {
			dst.Set(src)
			return
		}
		for i := 0; i < src.Len(); i++ {
			c.copy(dst.Index(i), src.Index(i))
		}

	case reflect.Map:
		if src.IsNil() {
			return
		}
		m := reflect.MakeMapWithSize(src.Type(), src.Len())
		iter := src.MapRange()
		for iter.Next() {
			v := reflect.New(src.Type().Elem()).Elem()
			c.copy(v, iter.Value())
			m.SetMapIndex(iter.Key(), v)
		}
		dst.Set(m)

	case reflect.Struct:
		dst.Set(src)
		for i := 0; i < src.NumField(); i++ {
			f := dst.Field(i)
			if !f.CanSet() {
				continue // unexported: left as the shallow copy above
			}
			c.copy(f, src.Field(i))
		}

	default:
		dst.Set(src)
	}
}

func (c *copier) viaCopier(dst, src reflect.Value) bool {
	if src.Kind() == reflect.Interface || !src.CanInterface() || !src.Type().Implements(copierType) {
		return false
	}
	if src.Kind() == reflect.Pointer && src.IsNil() {
		return false
	}
	out := reflect.ValueOf(src.Interface().(Copier).DeepCopy())
	if !out.IsValid() || !out.Type().AssignableTo(dst.Type()) {
		return false
	}
	dst.Set(out)
	return true
}

// flat reports whether values of t hold no references.
func flat(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return flat(t.Elem())
	default:
		return false
	}
}

// CheckArgs reports whether values of t can be copied into an envelope.
// Channels, functions, unsafe pointers and synchronisation primitives are
// rejected unless a Copier takes responsibility for them. So are structs with
// unexported pointers, slices, maps or interfaces, such as bytes.Buffer, since
// a copy would still share them.
//
// Interface types are accepted here; their dynamic values are checked by Copy.
func CheckArgs(t reflect.Type) error {
	if t == nil {
		return nil
	}
	return checkType(t, make(map[reflect.Type]bool), t.String())
}

func checkType(t reflect.Type, seen map[reflect.Type]bool, path string) error {
	if seen[t] {
		return nil
	}
	seen[t] = true

	if t.Implements(copierType) || (t.Kind() != reflect.Interface && reflect.PointerTo(t).Implements(copierType)) {
		return nil
	}

	if pkg := t.PkgPath(); pkg == "sync" || pkg == "sync/atomic" {
		return fmt.Errorf("%w: %s holds %s", ErrUnsafeArgument, path, t)
	}

	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return fmt.Errorf("%w: %s is a %s", ErrUnsafeArgument, path, t.Kind())
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return checkType(t.Elem(), seen, path)
	case reflect.Map:
		if err := checkType(t.Key(), seen, path); err != nil {
			return err
		}
		return checkType(t.Elem(), seen, path)
	case reflect.Struct:
		if valueTypes[t] {
			return nil
		}
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			check := checkType
			if !f.IsExported() {
				check = checkShallow
			}
			if err := check(f.Type, seen, path+"."+f.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkShallow accepts only types whose plain assignment copies all of their
// state, as happens to unexported fields.
func checkShallow(t reflect.Type, seen map[reflect.Type]bool, path string) error {
	if valueTypes[t] {
		return nil
	}
	if pkg := t.PkgPath(); pkg == "sync" || pkg == "sync/atomic" {
		return fmt.Errorf("%w: %s holds %s", ErrUnsafeArgument, path, t)
	}

	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface,
		reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return fmt.Errorf("%w: unexported %s is a %s shared by every copy", ErrUnsafeArgument, path, t.Kind())
	case reflect.Array:
		return checkShallow(t.Elem(), seen, path)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if err := checkShallow(f.Type, seen, path+"."+f.Name); err != nil {
				return err
			}
		}
	}
	return nil
}
