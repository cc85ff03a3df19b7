// Package multicast holds ordered collections of delegates that are invoked
// together: a broadcast to every registered handler.
//
// Multicast is for single-goroutine use. Safe adds one lock so publishers and
// subscribers may live on different goroutines; handlers may add or remove
// entries, including themselves, while a broadcast is running.
package multicast

import (
	"slices"
	"sync"

	"github.com/shashiranjanraj/delegate/pkg/delegate"
)

// Multicast is an ordered list of delegates. The zero value is empty and
// ready to use. It is not safe for concurrent use; see Safe.
type Multicast[A, R any] struct {
	delegates []delegate.Delegate[A, R]
}

// Add appends a clone of d. Duplicates are allowed and each is invoked.
func (m *Multicast[A, R]) Add(d delegate.Delegate[A, R]) {
	if d == nil {
		return
	}
	m.delegates = append(m.delegates, d.Clone())
}

// Remove deletes the first entry equal to d. Removing a delegate that was
// never added is a no-op.
func (m *Multicast[A, R]) Remove(d delegate.Delegate[A, R]) {
	if d == nil {
		return
	}
	if i := slices.IndexFunc(m.delegates, d.Equal); i >= 0 {
		m.delegates = slices.Delete(slices.Clone(m.delegates), i, i+1)
	}
}

// Invoke calls every delegate in insertion order with args. Results are
// discarded. The list is snapshotted first, so changes made by handlers take
// effect from the next broadcast.
func (m *Multicast[A, R]) Invoke(args A) {
	broadcast(m.delegates, args)
}

// Clear removes every delegate.
func (m *Multicast[A, R]) Clear() { m.delegates = nil }

// Empty reports whether no delegates are registered.
func (m *Multicast[A, R]) Empty() bool { return len(m.delegates) == 0 }

// Bool reports whether any delegate is registered.
func (m *Multicast[A, R]) Bool() bool { return !m.Empty() }

// Len returns the number of registered delegates.
func (m *Multicast[A, R]) Len() int { return len(m.delegates) }

func broadcast[A, R any](snapshot []delegate.Delegate[A, R], args A) {
	for _, d := range snapshot {
		d.Invoke(args)
	}
}

// Safe is a Multicast guarded by a mutex. The lock is not held while
// handlers run.
type Safe[A, R any] struct {
	mu sync.Mutex
	m  Multicast[A, R]
}

func (s *Safe[A, R]) Add(d delegate.Delegate[A, R]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m.Add(d)
}

func (s *Safe[A, R]) Remove(d delegate.Delegate[A, R]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m.Remove(d)
}

// Invoke snapshots the list under the lock, releases it, and calls every
// delegate in insertion order.
func (s *Safe[A, R]) Invoke(args A) {
	s.mu.Lock()
	snapshot := s.m.delegates
	s.mu.Unlock()

	broadcast(snapshot, args)
}

func (s *Safe[A, R]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m.Clear()
}

func (s *Safe[A, R]) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Empty()
}

func (s *Safe[A, R]) Bool() bool { return !s.Empty() }

func (s *Safe[A, R]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m.Len()
}
