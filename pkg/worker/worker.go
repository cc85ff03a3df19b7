// Package worker provides the target of asynchronous delegate calls: an
// execution context that owns a FIFO queue of envelopes and delivers each one
// on its own goroutine.
//
// Basic usage:
//
//	w := worker.New("ui")
//	w.Start()
//	defer w.Close()
//
//	err := w.DispatchDelegate(msg)
//	if errors.Is(err, worker.ErrWorkerFull) {
//	    // Handle backpressure: the envelope was not queued.
//	}
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/shashiranjanraj/delegate/config"
	"github.com/shashiranjanraj/delegate/pkg/deadletter"
	"github.com/shashiranjanraj/delegate/pkg/envelope"
	"github.com/shashiranjanraj/delegate/pkg/logger"
	"github.com/shashiranjanraj/delegate/pkg/metrics"
)

// ErrWorkerFull is returned by DispatchDelegate when the queue is at capacity.
var ErrWorkerFull = errors.New("worker: queue is full")

// ErrWorkerClosed is returned by DispatchDelegate after Close has been called.
var ErrWorkerClosed = errors.New("worker: worker is closed")

// Worker accepts envelopes for delivery on its execution context.
//
// DispatchDelegate must not block the caller. On success the worker owns msg
// and will call msg.Deliver followed by msg.Release, in dispatch order for
// envelopes from a single producer goroutine. On error ownership stays with
// the caller.
//
// Workers are compared by identity, so implementations should be pointer
// types.
type Worker interface {
	DispatchDelegate(msg *envelope.Message) error
}

// Stats is a point-in-time snapshot of a Thread's counters.
type Stats struct {
	Dispatched uint64
	Delivered  uint64
	Dropped    uint64
	Panics     uint64
	Depth      int
}

// Option configures a Thread.
type Option func(*Thread)

// WithQueueSize bounds the queue. Defaults to WORKER_QUEUE_SIZE.
func WithQueueSize(n int) Option {
	return func(t *Thread) {
		if n > 0 {
			t.size = n
		}
	}
}

// WithDeadLetter records envelopes dropped at Close in store.
func WithDeadLetter(store deadletter.Store) Option {
	return func(t *Thread) { t.deadLetter = store }
}

// Thread is a Worker backed by one goroutine draining a buffered channel.
type Thread struct {
	id         string
	name       string
	size       int
	queue      chan *envelope.Message
	closeCh    chan struct{}
	deadLetter deadletter.Store
	log        *slog.Logger

	mu        sync.RWMutex // guards closed against in-flight sends
	closed    bool
	startOnce sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup

	dispatched atomic.Uint64
	delivered  atomic.Uint64
	dropped    atomic.Uint64
	panics     atomic.Uint64
}

// New creates a stopped Thread. Envelopes may be dispatched before Start;
// they are delivered once the goroutine runs.
func New(name string, opts ...Option) *Thread {
	t := &Thread{
		id:      uuid.NewString(),
		name:    name,
		size:    config.WorkerQueueSize(),
		closeCh: make(chan struct{}),
	}
	for _, o := range opts {
		o(t)
	}
	t.queue = make(chan *envelope.Message, t.size)
	t.log = logger.With("worker", name, "worker_id", t.id)
	return t
}

// ID returns the unique identity of the thread.
func (t *Thread) ID() string { return t.id }

// Name returns the name given to New.
func (t *Thread) Name() string { return t.name }

// Start launches the delivery goroutine. Calling it again, or after Close,
// does nothing.
func (t *Thread) Start() {
	t.startOnce.Do(func() {
		t.mu.RLock()
		defer t.mu.RUnlock()
		if t.closed {
			return
		}
		t.wg.Add(1)
		go t.loop()
		t.log.Debug("worker started", "queue_size", t.size)
	})
}

// DispatchDelegate enqueues msg. It never blocks.
//   - Returns ErrWorkerFull if the queue is at capacity.
//   - Returns ErrWorkerClosed if Close has been called.
func (t *Thread) DispatchDelegate(msg *envelope.Message) error {
	if msg == nil {
		return fmt.Errorf("worker %s: nil envelope", t.name)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		metrics.WorkerDropped.WithLabelValues(t.name, "closed").Inc()
		return ErrWorkerClosed
	}

	select {
	case t.queue <- msg:
		t.dispatched.Add(1)
		metrics.WorkerDispatched.WithLabelValues(t.name).Inc()
		metrics.WorkerQueueDepth.WithLabelValues(t.name).Set(float64(len(t.queue)))
		return nil
	default:
		metrics.WorkerDropped.WithLabelValues(t.name, "full").Inc()
		return ErrWorkerFull
	}
}

// Submit runs task on the thread as an envelope without arguments.
func (t *Thread) Submit(task func()) error {
	return t.DispatchDelegate(envelope.New(envelope.InvokerFunc(func(*envelope.Message) {
		task()
	}), struct{}{}))
}

// Close stops accepting envelopes, waits for the delivery in progress, and
// releases the goroutine. Envelopes still queued are released without
// delivery and recorded to the dead-letter store.
// It is safe to call multiple times.
func (t *Thread) Close() {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		close(t.closeCh)
		t.mu.Unlock()

		t.wg.Wait()
		n := t.drain()
		t.log.Debug("worker closed", "dropped", n)
	})
}

// Stats returns the thread's counters.
func (t *Thread) Stats() Stats {
	return Stats{
		Dispatched: t.dispatched.Load(),
		Delivered:  t.delivered.Load(),
		Dropped:    t.dropped.Load(),
		Panics:     t.panics.Load(),
		Depth:      len(t.queue),
	}
}

// loop delivers envelopes until Close.
func (t *Thread) loop() {
	defer t.wg.Done()
	for {
		select {
		case <-t.closeCh:
			return
		case msg := <-t.queue:
			metrics.WorkerQueueDepth.WithLabelValues(t.name).Set(float64(len(t.queue)))
			t.deliver(msg)
		}
	}
}

func (t *Thread) deliver(msg *envelope.Message) {
	defer func() {
		if err := msg.Release(); err != nil {
			t.log.Warn("envelope released twice", "envelope_id", msg.ID())
		}
	}()
	defer metrics.ObserveDelivery(t.name, time.Now())

	t.safeRun(msg)
	t.delivered.Add(1)
}

// safeRun calls the delivery entry point, recovering from panics so a bad
// handler doesn't kill the worker goroutine.
func (t *Thread) safeRun(msg *envelope.Message) {
	defer func() {
		if r := recover(); r != nil {
			t.panics.Add(1)
			metrics.WorkerPanics.WithLabelValues(t.name).Inc()
			t.log.Error("delegate panicked",
				"envelope_id", msg.ID(),
				"fingerprint", msg.Fingerprint(),
				"panic", r,
			)
		}
	}()

	if err := msg.Deliver(); err != nil {
		t.log.Warn("envelope not delivered", "envelope_id", msg.ID(), "error", err)
	}
}

// drain releases whatever is left in the queue after the loop has exited.
func (t *Thread) drain() int {
	n := 0
	for {
		select {
		case msg := <-t.queue:
			n++
			t.dropped.Add(1)
			metrics.WorkerDropped.WithLabelValues(t.name, "closed").Inc()
			if t.deadLetter != nil {
				rec := deadletter.FromMessage(t.name, deadletter.ReasonWorkerClosed, msg)
				if err := t.deadLetter.Put(context.Background(), rec); err != nil {
					t.log.Error("dead letter not recorded", "envelope_id", msg.ID(), "error", err)
				}
			}
			_ = msg.Discard()
		default:
			metrics.WorkerQueueDepth.WithLabelValues(t.name).Set(0)
			return n
		}
	}
}
