package remote

import (
	"context"
	"errors"
	"sync"
)

// ErrTransportClosed is returned by Send and Receive after Close.
var ErrTransportClosed = errors.New("remote: transport closed")

// Transport moves encoded remote calls between processes. Send and Receive
// may be called from different goroutines.
type Transport interface {
	Send(ctx context.Context, payload []byte) error
	// Receive blocks until a payload arrives, ctx is done, or the transport
	// is closed.
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// MemoryTransport is an in-process, channel-backed transport.
// Perfect for development and testing; not durable across restarts.
type MemoryTransport struct {
	ch        chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

// NewMemoryTransport creates a transport buffering up to size payloads
// (1000 when size <= 0).
func NewMemoryTransport(size int) *MemoryTransport {
	if size <= 0 {
		size = 1000
	}
	return &MemoryTransport{
		ch:     make(chan []byte, size),
		closed: make(chan struct{}),
	}
}

// Send blocks while the buffer is full.
func (t *MemoryTransport) Send(ctx context.Context, payload []byte) error {
	select {
	case <-t.closed:
		return ErrTransportClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.closed:
		return ErrTransportClosed
	case t.ch <- payload:
		return nil
	}
}

func (t *MemoryTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.closed:
		return nil, ErrTransportClosed
	case payload := <-t.ch:
		return payload, nil
	}
}

func (t *MemoryTransport) Close() error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}
