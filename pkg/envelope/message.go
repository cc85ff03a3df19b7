// Package envelope defines the unit of cross-goroutine delivery: a message
// pairing an owned delegate with an owned copy of its arguments.
//
// A Message is created by the producer, handed to a worker, and released by
// the worker once its delivery entry point returns. The arguments travel as
// an opaque payload; the receiving side recovers them with Args, which checks
// the type fingerprint recorded at construction.
package envelope

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrReleased is returned when a released message is read or released again.
	ErrReleased = errors.New("envelope: message already released")

	// ErrFingerprint is returned when Args is asked for a type other than the
	// one the message was built with.
	ErrFingerprint = errors.New("envelope: argument fingerprint mismatch")
)

// Invoker is the delivery entry point a worker calls for each message.
// Async delegates implement it to unpack the payload and call their target.
type Invoker interface {
	DelegateInvoke(msg *Message)
}

// InvokerFunc adapts a plain function to Invoker.
type InvokerFunc func(msg *Message)

// DelegateInvoke calls f(msg).
func (f InvokerFunc) DelegateInvoke(msg *Message) { f(msg) }

// Discarder is implemented by invokers that must hear about a message dropped
// without delivery, such as a blocking caller still waiting on it.
type Discarder interface {
	DelegateDiscard(msg *Message)
}

// Message owns a delegate and its argument payload until released.
type Message struct {
	id          string
	createdAt   time.Time
	fingerprint reflect.Type

	mu       sync.Mutex
	invoker  Invoker
	payload  any
	released bool
}

// New builds a message that will deliver args to invoker. Ownership of both
// passes to the message.
func New[A any](invoker Invoker, args A) *Message {
	return &Message{
		id:          uuid.NewString(),
		createdAt:   time.Now(),
		fingerprint: reflect.TypeOf((*A)(nil)).Elem(),
		invoker:     invoker,
		payload:     args,
	}
}

func (m *Message) ID() string           { return m.id }
func (m *Message) CreatedAt() time.Time { return m.createdAt }

// Fingerprint returns the argument type name, e.g. "delegate.Pair[int,string]".
func (m *Message) Fingerprint() string {
	if m.fingerprint == nil {
		return "<nil>"
	}
	return m.fingerprint.String()
}

// Payload returns the raw arguments, or nil once released.
func (m *Message) Payload() any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payload
}

// Deliver calls the owned invoker's entry point with m. It fails with
// ErrReleased if m was already released.
func (m *Message) Deliver() error {
	m.mu.Lock()
	inv, released := m.invoker, m.released
	m.mu.Unlock()

	if released {
		return ErrReleased
	}
	if inv == nil {
		return fmt.Errorf("envelope: message %s has no invoker", m.id)
	}
	inv.DelegateInvoke(m)
	return nil
}

// Release drops the delegate and payload so both become collectable. A second
// call returns ErrReleased.
func (m *Message) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return ErrReleased
	}
	m.released = true
	m.invoker = nil
	m.payload = nil
	return nil
}

// Discard releases m without delivering it, first telling the invoker if it
// implements Discarder.
func (m *Message) Discard() error {
	m.mu.Lock()
	inv, released := m.invoker, m.released
	m.mu.Unlock()

	if released {
		return ErrReleased
	}
	if d, ok := inv.(Discarder); ok {
		d.DelegateDiscard(m)
	}
	return m.Release()
}

// Released reports whether Release has been called.
func (m *Message) Released() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released
}

// Args recovers the payload as A.
func Args[A any](m *Message) (A, error) {
	var zero A
	if m == nil {
		return zero, ErrReleased
	}

	want := reflect.TypeOf((*A)(nil)).Elem()
	if m.fingerprint != want {
		return zero, fmt.Errorf("%w: message carries %s, want %s", ErrFingerprint, m.Fingerprint(), want)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return zero, ErrReleased
	}
	if m.payload == nil {
		// A nil interface or pointer payload.
		return zero, nil
	}
	return m.payload.(A), nil
}

// MustArgs is Args for delivery entry points, which cannot return errors.
// It panics on a fingerprint mismatch; workers recover and log the panic.
func MustArgs[A any](m *Message) A {
	a, err := Args[A](m)
	if err != nil {
		panic(err)
	}
	return a
}
