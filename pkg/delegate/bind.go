package delegate

// Void stands in for "no arguments" and "no result".
type Void struct{}

// Pair carries the arguments of a two-parameter target.
type Pair[A1, A2 any] struct {
	First  A1
	Second A2
}

// Triple carries the arguments of a three-parameter target.
type Triple[A1, A2, A3 any] struct {
	First  A1
	Second A2
	Third  A3
}

// Args2 packs two arguments for a handle built by Func2, Action2 or Method2.
func Args2[A1, A2 any](a1 A1, a2 A2) Pair[A1, A2] {
	return Pair[A1, A2]{First: a1, Second: a2}
}

// Args3 packs three arguments.
func Args3[A1, A2, A3 any](a1 A1, a2 A2, a3 A3) Triple[A1, A2, A3] {
	return Triple[A1, A2, A3]{First: a1, Second: a2, Third: a3}
}

// ─────────────────────────────────────────────
// Free functions
// ─────────────────────────────────────────────

// Func binds a one-argument function.
func Func[A, R any](fn func(A) R) *Handle[A, R] {
	return newHandle(freeTarget(fn), fn)
}

// Func0 binds a function with no arguments.
func Func0[R any](fn func() R) *Handle[Void, R] {
	return newHandle(freeTarget(fn), func(Void) R { return fn() })
}

// Func2 binds a two-argument function.
func Func2[A1, A2, R any](fn func(A1, A2) R) *Handle[Pair[A1, A2], R] {
	return newHandle(freeTarget(fn), func(p Pair[A1, A2]) R {
		return fn(p.First, p.Second)
	})
}

// Func3 binds a three-argument function.
func Func3[A1, A2, A3, R any](fn func(A1, A2, A3) R) *Handle[Triple[A1, A2, A3], R] {
	return newHandle(freeTarget(fn), func(t Triple[A1, A2, A3]) R {
		return fn(t.First, t.Second, t.Third)
	})
}

// Action binds a one-argument procedure.
func Action[A any](fn func(A)) *Handle[A, Void] {
	return newHandle(freeTarget(fn), func(a A) Void {
		fn(a)
		return Void{}
	})
}

// Action0 binds a procedure with no arguments.
func Action0(fn func()) *Handle[Void, Void] {
	return newHandle(freeTarget(fn), func(Void) Void {
		fn()
		return Void{}
	})
}

// Action2 binds a two-argument procedure.
func Action2[A1, A2 any](fn func(A1, A2)) *Handle[Pair[A1, A2], Void] {
	return newHandle(freeTarget(fn), func(p Pair[A1, A2]) Void {
		fn(p.First, p.Second)
		return Void{}
	})
}

// Action3 binds a three-argument procedure.
func Action3[A1, A2, A3 any](fn func(A1, A2, A3)) *Handle[Triple[A1, A2, A3], Void] {
	return newHandle(freeTarget(fn), func(t Triple[A1, A2, A3]) Void {
		fn(t.First, t.Second, t.Third)
		return Void{}
	})
}

// ─────────────────────────────────────────────
// Methods
// ─────────────────────────────────────────────

// Method binds a method expression to obj:
//
//	delegate.Method(c, (*Calc).Square)
func Method[C, A, R any](obj *C, m func(*C, A) R) *Handle[A, R] {
	return newHandle(memberTarget(obj, m), func(a A) R { return m(obj, a) })
}

// Method0 binds a method with no arguments.
func Method0[C, R any](obj *C, m func(*C) R) *Handle[Void, R] {
	return newHandle(memberTarget(obj, m), func(Void) R { return m(obj) })
}

// Method2 binds a two-argument method.
func Method2[C, A1, A2, R any](obj *C, m func(*C, A1, A2) R) *Handle[Pair[A1, A2], R] {
	return newHandle(memberTarget(obj, m), func(p Pair[A1, A2]) R {
		return m(obj, p.First, p.Second)
	})
}

// Method3 binds a three-argument method.
func Method3[C, A1, A2, A3, R any](obj *C, m func(*C, A1, A2, A3) R) *Handle[Triple[A1, A2, A3], R] {
	return newHandle(memberTarget(obj, m), func(t Triple[A1, A2, A3]) R {
		return m(obj, t.First, t.Second, t.Third)
	})
}

// MethodAction binds a one-argument method without a result.
func MethodAction[C, A any](obj *C, m func(*C, A)) *Handle[A, Void] {
	return newHandle(memberTarget(obj, m), func(a A) Void {
		m(obj, a)
		return Void{}
	})
}

// MethodAction0 binds a method with neither arguments nor result.
func MethodAction0[C any](obj *C, m func(*C)) *Handle[Void, Void] {
	return newHandle(memberTarget(obj, m), func(Void) Void {
		m(obj)
		return Void{}
	})
}

// MethodAction2 binds a two-argument method without a result.
func MethodAction2[C, A1, A2 any](obj *C, m func(*C, A1, A2)) *Handle[Pair[A1, A2], Void] {
	return newHandle(memberTarget(obj, m), func(p Pair[A1, A2]) Void {
		m(obj, p.First, p.Second)
		return Void{}
	})
}

// MethodAction3 binds a three-argument method without a result.
func MethodAction3[C, A1, A2, A3 any](obj *C, m func(*C, A1, A2, A3)) *Handle[Triple[A1, A2, A3], Void] {
	return newHandle(memberTarget(obj, m), func(t Triple[A1, A2, A3]) Void {
		m(obj, t.First, t.Second, t.Third)
		return Void{}
	})
}
