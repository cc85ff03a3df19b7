// Package async wraps delegates so that invoking them runs the target on a
// worker instead of the caller's goroutine.
//
// Async is fire-and-forget: the arguments are deep-copied into an envelope
// and the caller returns immediately. Wait blocks the caller until the worker
// has run the target or a timeout elapses, and passes arguments by value
// because the caller is parked for the duration of the call.
package async

import (
	"fmt"
	"reflect"

	"github.com/shashiranjanraj/delegate/pkg/delegate"
	"github.com/shashiranjanraj/delegate/pkg/envelope"
	"github.com/shashiranjanraj/delegate/pkg/logger"
	"github.com/shashiranjanraj/delegate/pkg/worker"
)

// Async is a fire-and-forget delegate bound to a worker.
type Async[A, R any] struct {
	target delegate.Delegate[A, R]
	worker worker.Worker
}

// New wraps target for asynchronous invocation on w. Argument types that
// cannot be deep-copied (channels, functions, values holding locks) are
// rejected here rather than at call time.
func New[A, R any](target delegate.Delegate[A, R], w worker.Worker) (*Async[A, R], error) {
	if err := envelope.CheckArgs(reflect.TypeOf((*A)(nil)).Elem()); err != nil {
		return nil, fmt.Errorf("async: %w", err)
	}
	return &Async[A, R]{target: cloneOf(target), worker: orNil(w)}, nil
}

// MustNew is New that panics on an unsupported argument type.
func MustNew[A, R any](target delegate.Delegate[A, R], w worker.Worker) *Async[A, R] {
	a, err := New(target, w)
	if err != nil {
		panic(err)
	}
	return a
}

// Invoke dispatches the call and returns the zero R at once. With a nil
// worker the target runs synchronously and its result is returned. A
// dispatch failure is logged; use Dispatch to observe it.
func (a *Async[A, R]) Invoke(args A) R {
	if a.worker == nil {
		return a.call(args)
	}
	if err := a.Dispatch(args); err != nil {
		logger.Warn("async dispatch failed", "fingerprint", reflect.TypeOf((*A)(nil)).Elem().String(), "error", err)
	}
	var zero R
	return zero
}

// Dispatch deep-copies args into an envelope owned by a clone of a and hands
// it to the worker.
func (a *Async[A, R]) Dispatch(args A) error {
	if a.worker == nil {
		a.call(args)
		return nil
	}

	owned, err := envelope.Copy(args)
	if err != nil {
		return fmt.Errorf("async: %w", err)
	}
	msg := envelope.New[A](a.clone(), owned)
	if err := a.worker.DispatchDelegate(msg); err != nil {
		_ = msg.Release()
		return fmt.Errorf("async: dispatch: %w", err)
	}
	return nil
}

// DelegateInvoke is the delivery entry point run on the worker.
func (a *Async[A, R]) DelegateInvoke(msg *envelope.Message) {
	a.call(envelope.MustArgs[A](msg))
}

func (a *Async[A, R]) Clone() delegate.Delegate[A, R] { return a.clone() }

// Equal reports whether other is an Async on the same worker wrapping an
// equal target.
func (a *Async[A, R]) Equal(other delegate.Delegate[A, R]) bool {
	o, ok := other.(*Async[A, R])
	if !ok || o == nil {
		return false
	}
	return a.worker == o.worker && equalTargets(a.target, o.target)
}

// Worker returns the target worker.
func (a *Async[A, R]) Worker() worker.Worker { return a.worker }

func (a *Async[A, R]) clone() *Async[A, R] {
	return &Async[A, R]{target: cloneOf(a.target), worker: a.worker}
}

func (a *Async[A, R]) call(args A) R {
	if a.target == nil {
		var zero R
		return zero
	}
	return a.target.Invoke(args)
}

// orNil turns a typed nil worker, such as a nil *worker.Thread, into a nil
// interface so callers fall back to running inline.
func orNil(w worker.Worker) worker.Worker {
	if w == nil {
		return nil
	}
	switch v := reflect.ValueOf(w); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		if v.IsNil() {
			return nil
		}
	}
	return w
}

func cloneOf[A, R any](d delegate.Delegate[A, R]) delegate.Delegate[A, R] {
	if d == nil {
		return nil
	}
	return d.Clone()
}

func equalTargets[A, R any](x, y delegate.Delegate[A, R]) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	return x.Equal(y)
}
