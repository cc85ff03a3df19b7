// Package delegate provides value-typed callable handles: a free function or a
// method bound to an instance, invocable later through one capability shape.
//
// A handle has the signature func(A) R. Functions of other arities are
// adapted by the constructors in bind.go: zero arguments use Void as A, two
// and three arguments are packed into Pair and Triple. Procedures return Void.
//
//	type Counter struct{ n int }
//	func (c *Counter) Inc(by int) { c.n += by }
//
//	c := &Counter{}
//	d := delegate.MethodAction(c, (*Counter).Inc)
//	d.Invoke(42)
//
//	sq := delegate.Func(func(x int) int { return x * x })
//	sq.Invoke(7) // 49
//
// Handles compare equal when their bindings are structurally identical:
// the same function entry point, and for methods the same receiver pointer.
// Methods must be bound through method expressions such as (*Counter).Inc;
// a method value (c.Inc) is a closure and loses the receiver identity.
package delegate

import (
	"reflect"
	"sync/atomic"
)

// Delegate is the capability every callable handle offers. Async and remote
// handles implement it too, so containers can hold any of them.
type Delegate[A, R any] interface {
	// Invoke calls the bound target. An unbound delegate returns the zero R.
	Invoke(args A) R
	// Clone returns an independent handle that is Equal to the receiver.
	Clone() Delegate[A, R]
	// Equal reports structural equality of the bindings.
	Equal(other Delegate[A, R]) bool
}

// Kind tags a binding.
type Kind uint8

const (
	Unbound Kind = iota
	Free
	Member
)

func (k Kind) String() string {
	switch k {
	case Free:
		return "free"
	case Member:
		return "member"
	default:
		return "unbound"
	}
}

// Target describes what a handle is bound to. It is comparable, and two
// handles are Equal exactly when their Targets are ==.
type Target struct {
	Kind     Kind
	Entry    uintptr // code pointer of the function or method expression
	Receiver any     // *C for Member bindings, nil otherwise
}

type binding[A, R any] struct {
	target Target
	call   func(A) R
}

// Handle is the concrete synchronous delegate. The zero value is an unbound
// handle. Bindings are replaced atomically, so a Handle may be rebound while
// other goroutines invoke it.
type Handle[A, R any] struct {
	b atomic.Pointer[binding[A, R]]
}

// Invoke applies the binding to args, or returns the zero R when unbound.
func (h *Handle[A, R]) Invoke(args A) R {
	if b := h.b.Load(); b != nil {
		return b.call(args)
	}
	var zero R
	return zero
}

// Clone returns a handle sharing the same (immutable) binding.
func (h *Handle[A, R]) Clone() Delegate[A, R] {
	c := &Handle[A, R]{}
	c.b.Store(h.b.Load())
	return c
}

// Equal reports whether other is a *Handle with an identical binding.
func (h *Handle[A, R]) Equal(other Delegate[A, R]) bool {
	o, ok := other.(*Handle[A, R])
	if !ok || o == nil {
		return false
	}
	return h.Target() == o.Target()
}

// Target returns the current binding descriptor.
func (h *Handle[A, R]) Target() Target {
	if b := h.b.Load(); b != nil {
		return b.target
	}
	return Target{}
}

// Empty reports whether the handle is unbound.
func (h *Handle[A, R]) Empty() bool { return h.b.Load() == nil }

// Clear unbinds the handle.
func (h *Handle[A, R]) Clear() { h.b.Store(nil) }

// Bind replaces the binding with the free function fn. A nil fn unbinds.
func (h *Handle[A, R]) Bind(fn func(A) R) {
	if fn == nil {
		h.Clear()
		return
	}
	h.b.Store(&binding[A, R]{target: freeTarget(fn), call: fn})
}

// BindMethod replaces h's binding with method on obj. A nil obj or method
// unbinds, matching a member delegate with no instance.
func BindMethod[C, A, R any](h *Handle[A, R], obj *C, method func(*C, A) R) {
	if obj == nil || method == nil {
		h.Clear()
		return
	}
	h.b.Store(&binding[A, R]{
		target: memberTarget(obj, method),
		call:   func(args A) R { return method(obj, args) },
	})
}

func newHandle[A, R any](t Target, call func(A) R) *Handle[A, R] {
	h := &Handle[A, R]{}
	if t.Kind != Unbound {
		h.b.Store(&binding[A, R]{target: t, call: call})
	}
	return h
}

func entry(fn any) uintptr {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return 0
	}
	return v.Pointer()
}

func freeTarget(fn any) Target {
	e := entry(fn)
	if e == 0 {
		return Target{}
	}
	return Target{Kind: Free, Entry: e}
}

func memberTarget(recv any, method any) Target {
	e := entry(method)
	if e == 0 || recv == nil || reflect.ValueOf(recv).IsNil() {
		return Target{}
	}
	return Target{Kind: Member, Entry: e, Receiver: recv}
}
