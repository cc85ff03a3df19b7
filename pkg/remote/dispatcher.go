package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shashiranjanraj/delegate/pkg/deadletter"
	"github.com/shashiranjanraj/delegate/pkg/logger"
	"github.com/shashiranjanraj/delegate/pkg/metrics"
)

// Dispatcher receives payloads from one transport and routes them through a
// Registry.
type Dispatcher struct {
	transport  Transport
	registry   *Registry
	deadLetter deadletter.Store
	source     string
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDeadLetter records unroutable and undecodable payloads in store.
func WithDeadLetter(store deadletter.Store) DispatcherOption {
	return func(d *Dispatcher) { d.deadLetter = store }
}

// WithSource labels dead letters written by this dispatcher. Defaults to
// "remote".
func WithSource(name string) DispatcherOption {
	return func(d *Dispatcher) { d.source = name }
}

func NewDispatcher(t Transport, reg *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{transport: t, registry: reg, source: "remote"}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Run receives and routes payloads until ctx is cancelled or the transport
// closes. It returns nil in both cases; transient receive errors are logged
// and retried.
func (d *Dispatcher) Run(ctx context.Context) error {
	logger.Info("remote: dispatcher started", "source", d.source)
	defer logger.Info("remote: dispatcher stopped", "source", d.source)

	for {
		raw, err := d.transport.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrTransportClosed) {
				return nil
			}
			logger.Warn("remote: receive failed", "source", d.source, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if raw == nil {
			continue
		}

		if err := d.Handle(ctx, raw); err != nil {
			logger.Warn("remote: message dropped", "source", d.source, "error", err)
		}
	}
}

// Handle decodes one payload and invokes the receiver registered for it.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) error {
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		metrics.RecordRemote("recv", "error")
		d.bury(ctx, deadletter.Record{Reason: deadletter.ReasonDecode, Payload: string(raw)})
		return fmt.Errorf("remote: bad message: %w", err)
	}

	inv, ok := d.registry.lookup(msg.ID)
	if !ok {
		metrics.RecordRemote("recv", "unknown")
		d.bury(ctx, record(msg, deadletter.ReasonUnknownDelegate))
		return fmt.Errorf("%w: %q", ErrUnknownDelegate, msg.ID)
	}

	if err := inv.DelegateInvoke(msg.Args); err != nil {
		metrics.RecordRemote("recv", "error")
		d.bury(ctx, record(msg, deadletter.ReasonDecode))
		return err
	}
	metrics.RecordRemote("recv", "ok")
	return nil
}

func record(msg wireMessage, reason string) deadletter.Record {
	return deadletter.Record{
		EnvelopeID:  msg.MsgID,
		Reason:      reason,
		Fingerprint: msg.ID,
		Payload:     string(msg.Args),
	}
}

func (d *Dispatcher) bury(ctx context.Context, rec deadletter.Record) {
	if d.deadLetter == nil {
		return
	}
	rec.Source = d.source
	rec.CreatedAt = time.Now()
	rec.FailedAt = rec.CreatedAt
	if err := d.deadLetter.Put(context.WithoutCancel(ctx), rec); err != nil {
		logger.Error("remote: dead letter not recorded", "envelope_id", rec.EnvelopeID, "error", err)
	}
}
