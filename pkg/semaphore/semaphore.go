// Package semaphore provides a one-shot binary signal with a bounded wait,
// used by blocking-wait delegates to learn that the target worker finished.
//
// A Binary is ready at construction. Signal sets the pending flag and wakes
// one waiter; Wait consumes the flag. Signals do not accumulate: two Signal
// calls before a Wait release exactly one Wait.
package semaphore

import (
	"context"
	"sync"
	"time"
)

// Binary is a single-permit signal. The zero value is not usable; call New.
type Binary struct {
	mu       sync.Mutex
	signaled bool
	wake     chan struct{} // cap 1; a token means "re-check signaled"
}

// New returns an unsignaled semaphore.
func New() *Binary {
	return &Binary{wake: make(chan struct{}, 1)}
}

// Create exists for parity with platform semaphores; the value is already
// usable after New.
func (s *Binary) Create() {}

// Reset clears a pending signal.
func (s *Binary) Reset() {
	s.mu.Lock()
	s.signaled = false
	s.mu.Unlock()

	select {
	case <-s.wake:
	default:
	}
}

// Signal sets the pending flag and wakes one waiter. Safe from any goroutine.
func (s *Binary) Signal() {
	s.mu.Lock()
	s.signaled = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default: // a wake token is already pending
	}
}

// Wait blocks until the semaphore is signaled or timeout elapses and reports
// whether it observed (and consumed) the signal. A negative timeout waits
// forever; zero only polls.
func (s *Binary) Wait(timeout time.Duration) bool {
	if timeout < 0 {
		return s.WaitContext(context.Background())
	}
	if timeout == 0 {
		return s.take()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.WaitContext(ctx)
}

// WaitContext blocks until the semaphore is signaled or ctx is done. A signal
// that races with cancellation is still reported.
func (s *Binary) WaitContext(ctx context.Context) bool {
	for {
		if s.take() {
			return true
		}
		select {
		case <-s.wake:
			// re-check: the token may be stale after a Reset
		case <-ctx.Done():
			return s.take()
		}
	}
}

func (s *Binary) take() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.signaled {
		s.signaled = false
		return true
	}
	return false
}
