// Package remote extends delegates across process boundaries.
//
// A Sender is a delegate whose Invoke encodes its arguments as JSON and sends
// them over a Transport. On the far side a Dispatcher receives each payload,
// looks up the Receiver registered under the same id and invokes its local
// target, which may itself be an async delegate so that remote calls land on
// a chosen worker.
//
//	// process A
//	send := remote.NewSender[Alarm](transport, "alarm")
//	send.Invoke(Alarm{Code: 7})
//
//	// process B
//	reg := remote.NewRegistry()
//	reg.Register(remote.NewReceiver("alarm", async.MustNew(delegate.Action(onAlarm), w)))
//	go remote.NewDispatcher(transport, reg).Run(ctx)
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/shashiranjanraj/delegate/pkg/delegate"
	"github.com/shashiranjanraj/delegate/pkg/logger"
	"github.com/shashiranjanraj/delegate/pkg/metrics"
)

// ErrUnknownDelegate is returned when a payload names an id nobody registered.
var ErrUnknownDelegate = errors.New("remote: unknown delegate id")

// wireMessage is the JSON form of one remote call.
type wireMessage struct {
	ID    string          `json:"id"`
	MsgID string          `json:"msg_id"`
	Args  json.RawMessage `json:"args"`
}

// Encode builds the wire form of a call to id with args.
func Encode[A any](id string, args A) ([]byte, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("remote: marshal args for %s: %w", id, err)
	}
	b, err := json.Marshal(wireMessage{ID: id, MsgID: uuid.NewString(), Args: raw})
	if err != nil {
		return nil, fmt.Errorf("remote: marshal message: %w", err)
	}
	return b, nil
}

// ─────────────────────────────────────────────
// Sender
// ─────────────────────────────────────────────

// Sender is the sending half of a remote delegate.
type Sender[A any] struct {
	id        string
	transport Transport
}

// NewSender returns a delegate that sends its arguments to id over t.
func NewSender[A any](t Transport, id string) *Sender[A] {
	return &Sender[A]{id: id, transport: t}
}

// ID returns the remote delegate id.
func (s *Sender[A]) ID() string { return s.id }

// Invoke sends args. Failures are logged; use Send to observe them.
func (s *Sender[A]) Invoke(args A) delegate.Void {
	if err := s.Send(context.Background(), args); err != nil {
		logger.Warn("remote send failed", "id", s.id, "error", err)
	}
	return delegate.Void{}
}

// Send encodes args and sends them over the transport.
func (s *Sender[A]) Send(ctx context.Context, args A) error {
	b, err := Encode(s.id, args)
	if err != nil {
		metrics.RecordRemote("send", "error")
		return err
	}
	if err := s.transport.Send(ctx, b); err != nil {
		metrics.RecordRemote("send", "error")
		return fmt.Errorf("remote: send %s: %w", s.id, err)
	}
	metrics.RecordRemote("send", "ok")
	return nil
}

func (s *Sender[A]) Clone() delegate.Delegate[A, delegate.Void] {
	return &Sender[A]{id: s.id, transport: s.transport}
}

// Equal reports whether other is a Sender with the same id and transport.
func (s *Sender[A]) Equal(other delegate.Delegate[A, delegate.Void]) bool {
	o, ok := other.(*Sender[A])
	if !ok || o == nil {
		return false
	}
	return s.id == o.id && s.transport == o.transport
}

// ─────────────────────────────────────────────
// Receiver
// ─────────────────────────────────────────────

// Invoker is what a Registry routes decoded payloads to.
type Invoker interface {
	ID() string
	DelegateInvoke(args json.RawMessage) error
}

// Receiver decodes payloads for id and invokes a local delegate.
type Receiver[A, R any] struct {
	id     string
	target delegate.Delegate[A, R]
}

// NewReceiver binds id to target. The target is cloned.
func NewReceiver[A, R any](id string, target delegate.Delegate[A, R]) *Receiver[A, R] {
	var c delegate.Delegate[A, R]
	if target != nil {
		c = target.Clone()
	}
	return &Receiver[A, R]{id: id, target: c}
}

func (r *Receiver[A, R]) ID() string { return r.id }

// DelegateInvoke decodes args as A and invokes the target.
func (r *Receiver[A, R]) DelegateInvoke(args json.RawMessage) error {
	var a A
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("remote: decode %s as %s: %w", r.id, reflect.TypeOf((*A)(nil)).Elem(), err)
	}
	if r.target != nil {
		r.target.Invoke(a)
	}
	return nil
}

// Registry maps delegate ids to receivers. It is safe for concurrent use and
// may be shared by several dispatchers.
type Registry struct {
	mu        sync.RWMutex
	receivers map[string]Invoker
}

func NewRegistry() *Registry {
	return &Registry{receivers: map[string]Invoker{}}
}

// Register adds inv under inv.ID(), replacing any previous receiver.
func (r *Registry) Register(inv Invoker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receivers[inv.ID()] = inv
}

func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.receivers, id)
}

func (r *Registry) lookup(id string) (Invoker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv, ok := r.receivers[id]
	return inv, ok
}

// IDs returns the registered ids in no particular order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.receivers))
	for id := range r.receivers {
		out = append(out, id)
	}
	return out
}
