package async

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shashiranjanraj/delegate/pkg/delegate"
	"github.com/shashiranjanraj/delegate/pkg/envelope"
	"github.com/shashiranjanraj/delegate/pkg/logger"
	"github.com/shashiranjanraj/delegate/pkg/metrics"
	"github.com/shashiranjanraj/delegate/pkg/semaphore"
	"github.com/shashiranjanraj/delegate/pkg/worker"
)

// WaitInfinite makes a Wait block until the worker finishes, however long.
const WaitInfinite time.Duration = -1

// Wait is a blocking delegate bound to a worker. Invoke parks the caller until
// the target has run on the worker or the timeout elapses; IsSuccess reports
// which happened.
//
// A timed-out call may still run later on the worker. Its result is then
// discarded.
type Wait[A, R any] struct {
	target  delegate.Delegate[A, R]
	worker  worker.Worker
	timeout time.Duration

	mu      sync.Mutex
	success bool
	ret     R

	// Set only on the per-call clone that travels in the envelope.
	onWorker atomic.Bool
	sema     *semaphore.Binary
	result   R
	panicked bool
	dropped  atomic.Bool
}

// NewWait wraps target for blocking invocation on w. A negative timeout
// (WaitInfinite) waits forever; zero only polls. A nil w, typed or not, runs
// the target inline.
func NewWait[A, R any](target delegate.Delegate[A, R], w worker.Worker, timeout time.Duration) *Wait[A, R] {
	if timeout < 0 {
		timeout = WaitInfinite
	}
	return &Wait[A, R]{target: cloneOf(target), worker: orNil(w), timeout: timeout}
}

// Invoke runs the target on the worker and returns its result, or the zero R
// if the call did not complete in time.
func (w *Wait[A, R]) Invoke(args A) R {
	if w.onWorker.Load() {
		// Already on the worker: run the target directly.
		return w.call(args)
	}
	r, _ := w.InvokeContext(context.Background(), args)
	return r
}

// AsyncInvoke is Invoke that also reports whether the call completed.
func (w *Wait[A, R]) AsyncInvoke(args A) (R, bool) {
	return w.InvokeContext(context.Background(), args)
}

// InvokeContext is AsyncInvoke bounded additionally by ctx.
func (w *Wait[A, R]) InvokeContext(ctx context.Context, args A) (R, bool) {
	var zero R

	w.mu.Lock()
	w.success = false
	w.ret = zero
	w.mu.Unlock()

	if w.worker == nil {
		r := w.call(args)
		w.complete(r)
		return r, true
	}

	c := w.clone()
	msg := envelope.New[A](c, args)
	if err := w.worker.DispatchDelegate(msg); err != nil {
		_ = msg.Release()
		metrics.RecordWait(metrics.WaitRefused)
		logger.Warn("blocking dispatch refused", "fingerprint", reflect.TypeOf((*A)(nil)).Elem().String(), "error", err)
		return zero, false
	}

	waitCtx := ctx
	if w.timeout >= 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	if !c.sema.WaitContext(waitCtx) {
		metrics.RecordWait(metrics.WaitTimeout)
		return zero, false
	}
	// The semaphore hand-off orders the clone's writes before these reads.
	if c.panicked {
		metrics.RecordWait(metrics.WaitPanic)
		return zero, false
	}
	if c.dropped.Load() {
		metrics.RecordWait(metrics.WaitDropped)
		return zero, false
	}

	w.complete(c.result)
	metrics.RecordWait(metrics.WaitSuccess)
	return c.result, true
}

// DelegateInvoke is the delivery entry point run on the worker. It marks the
// clone as on-worker, runs the target, stores the result and signals the
// waiting caller.
func (w *Wait[A, R]) DelegateInvoke(msg *envelope.Message) {
	w.onWorker.Store(true)
	defer func() {
		if r := recover(); r != nil {
			w.panicked = true
			w.sema.Signal()
			panic(r)
		}
	}()

	w.result = w.Invoke(envelope.MustArgs[A](msg))
	w.sema.Signal()
}

// DelegateDiscard wakes the waiting caller when the worker closes with the
// call still queued.
func (w *Wait[A, R]) DelegateDiscard(*envelope.Message) {
	w.dropped.Store(true)
	w.sema.Signal()
}

// IsSuccess reports whether the most recent invocation completed in time.
func (w *Wait[A, R]) IsSuccess() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.success
}

// ReturnValue returns the result of the most recent successful invocation,
// or the zero R.
func (w *Wait[A, R]) ReturnValue() R {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ret
}

// Timeout returns the configured wait.
func (w *Wait[A, R]) Timeout() time.Duration { return w.timeout }

// Worker returns the target worker.
func (w *Wait[A, R]) Worker() worker.Worker { return w.worker }

func (w *Wait[A, R]) Clone() delegate.Delegate[A, R] { return w.clone() }

// Equal reports whether other is a Wait on the same worker wrapping an equal
// target. Timeouts are not compared.
func (w *Wait[A, R]) Equal(other delegate.Delegate[A, R]) bool {
	o, ok := other.(*Wait[A, R])
	if !ok || o == nil {
		return false
	}
	return w.worker == o.worker && equalTargets(w.target, o.target)
}

func (w *Wait[A, R]) String() string {
	return fmt.Sprintf("async.Wait[%s](timeout=%s)", reflect.TypeOf((*A)(nil)).Elem(), w.timeout)
}

// clone returns a fresh handle with its own semaphore and no result.
func (w *Wait[A, R]) clone() *Wait[A, R] {
	return &Wait[A, R]{
		target:  cloneOf(w.target),
		worker:  w.worker,
		timeout: w.timeout,
		sema:    semaphore.New(),
	}
}

func (w *Wait[A, R]) complete(r R) {
	w.mu.Lock()
	w.ret = r
	w.success = true
	w.mu.Unlock()
}

func (w *Wait[A, R]) call(args A) R {
	if w.target == nil {
		var zero R
		return zero
	}
	return w.target.Invoke(args)
}
