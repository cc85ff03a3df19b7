// Package timer provides a periodic timer whose expiry is a delegate slot.
//
// Bind Expired to an async delegate to have the callback run on a chosen
// worker instead of the timer's goroutine:
//
//	t := timer.New("heartbeat")
//	t.Expired.Set(async.MustNew(delegate.MethodAction0(svc, (*Service).Tick), w))
//	t.Start(250 * time.Millisecond)
//	defer t.Stop()
package timer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shashiranjanraj/delegate/pkg/delegate"
	"github.com/shashiranjanraj/delegate/pkg/logger"
	"github.com/shashiranjanraj/delegate/pkg/multicast"
)

// Timer invokes Expired every interval while running.
type Timer struct {
	// Expired is called on each tick.
	Expired multicast.Singlecast[delegate.Void, delegate.Void]

	name string

	mu       sync.Mutex
	interval time.Duration
	cur      *ticking
}

// ticking is one run goroutine.
type ticking struct {
	stop   chan struct{}
	done   chan struct{}
	firing atomic.Bool
}

// New returns a stopped timer.
func New(name string) *Timer {
	return &Timer{name: name}
}

// Start begins ticking every interval. Starting a running timer restarts it
// with the new interval; a non-positive interval just stops it.
func (t *Timer) Start(interval time.Duration) {
	t.mu.Lock()
	old := t.cur
	t.cur = nil
	if interval > 0 {
		t.interval = interval
		t.cur = &ticking{stop: make(chan struct{}), done: make(chan struct{})}
		go t.run(interval, t.cur)
	}
	t.mu.Unlock()

	old.halt()
	if interval > 0 {
		logger.Debug("timer: started", "timer", t.name, "interval", interval)
	}
}

// Stop halts the timer. No tick starts after Stop returns. When no tick is
// running Stop also waits for the goroutine to exit; during a tick, including
// a call from Expired itself, it returns without waiting for the tick.
// Stopping a stopped timer does nothing.
func (t *Timer) Stop() {
	t.mu.Lock()
	cur := t.cur
	t.cur = nil
	t.mu.Unlock()

	if cur.halt() {
		logger.Debug("timer: stopped", "timer", t.name)
	}
}

func (k *ticking) halt() bool {
	if k == nil {
		return false
	}
	close(k.stop)
	if !k.firing.Load() {
		<-k.done
	}
	return true
}

// Running reports whether the timer is ticking.
func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur != nil
}

// Interval returns the interval of the last Start.
func (t *Timer) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

func (t *Timer) run(interval time.Duration, k *ticking) {
	defer close(k.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-k.stop:
			return
		case <-ticker.C:
			k.firing.Store(true)
			select {
			case <-k.stop:
				return
			default:
			}
			t.fire()
			k.firing.Store(false)
		}
	}
}

// fire runs Expired, recovering from panics so a bad callback doesn't stop
// the timer.
func (t *Timer) fire() {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("timer: callback panicked", "timer", t.name, "panic", r)
		}
	}()
	t.Expired.Invoke(delegate.Void{})
}
