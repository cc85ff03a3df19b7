package multicast

import (
	"sync"

	"github.com/shashiranjanraj/delegate/pkg/delegate"
)

// Singlecast holds at most one delegate. Unlike Multicast it returns the
// target's result. The zero value is empty and safe for concurrent use.
type Singlecast[A, R any] struct {
	mu sync.RWMutex
	d  delegate.Delegate[A, R]
}

// Set stores a clone of d, replacing any previous delegate. A nil d clears.
func (s *Singlecast[A, R]) Set(d delegate.Delegate[A, R]) {
	var c delegate.Delegate[A, R]
	if d != nil {
		c = d.Clone()
	}
	s.mu.Lock()
	s.d = c
	s.mu.Unlock()
}

// Invoke calls the delegate, or returns the zero R when empty.
func (s *Singlecast[A, R]) Invoke(args A) R {
	s.mu.RLock()
	d := s.d
	s.mu.RUnlock()

	if d == nil {
		var zero R
		return zero
	}
	return d.Invoke(args)
}

func (s *Singlecast[A, R]) Clear() { s.Set(nil) }

func (s *Singlecast[A, R]) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d == nil
}

func (s *Singlecast[A, R]) Bool() bool { return !s.Empty() }
