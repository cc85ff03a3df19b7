// Package server runs the long-lived side of the delegate runtime: an HTTP
// endpoint for metrics, health and WebSocket remote calls, plus a dispatcher
// draining the configured remote transport.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/shashiranjanraj/delegate/pkg/deadletter"
	"github.com/shashiranjanraj/delegate/pkg/logger"
	"github.com/shashiranjanraj/delegate/pkg/metrics"
	"github.com/shashiranjanraj/delegate/pkg/remote"
	"github.com/shashiranjanraj/delegate/pkg/worker"
)

const shutdownTimeout = 10 * time.Second

// Server wires remote receivers to HTTP and to an optional queue transport.
type Server struct {
	addr       string
	registry   *remote.Registry
	transport  remote.Transport
	deadLetter deadletter.Store
	workers    []*worker.Thread
}

// Option configures a Server.
type Option func(*Server)

// WithTransport also drains t (for example a Redis list) into the registry.
func WithTransport(t remote.Transport) Option {
	return func(s *Server) { s.transport = t }
}

// WithDeadLetter records unroutable remote calls in store.
func WithDeadLetter(store deadletter.Store) Option {
	return func(s *Server) { s.deadLetter = store }
}

// WithWorkers reports the given workers on /healthz.
func WithWorkers(ws ...*worker.Thread) Option {
	return func(s *Server) { s.workers = append(s.workers, ws...) }
}

func New(addr string, reg *remote.Registry, opts ...Option) *Server {
	s := &Server{addr: addr, registry: reg}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler builds the router:
//
//	GET /metrics  Prometheus
//	GET /healthz  worker stats as JSON
//	GET /remote   WebSocket remote-call endpoint
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", metrics.Handler())
	r.Get("/healthz", s.healthz)
	r.Get("/remote", s.remote)
	return r
}

type workerHealth struct {
	Name  string       `json:"name"`
	ID    string       `json:"id"`
	Stats worker.Stats `json:"stats"`
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	out := struct {
		Status  string         `json:"status"`
		Workers []workerHealth `json:"workers"`
	}{Status: "ok", Workers: make([]workerHealth, 0, len(s.workers))}

	for _, wk := range s.workers {
		out.Workers = append(out.Workers, workerHealth{Name: wk.Name(), ID: wk.ID(), Stats: wk.Stats()})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) remote(w http.ResponseWriter, r *http.Request) {
	t, err := remote.Upgrade(w, r)
	if err != nil {
		logger.Error("server: websocket upgrade failed", "error", err)
		return
	}
	defer t.Close()

	d := remote.NewDispatcher(t, s.registry,
		remote.WithDeadLetter(s.deadLetter),
		remote.WithSource("ws:"+r.RemoteAddr),
	)
	_ = d.Run(r.Context())
}

// Run serves until ctx is cancelled, then shuts the HTTP server down
// gracefully. The first failing component stops the others.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		// Hijacked WebSocket connections are not closed by Shutdown; their
		// dispatchers stop when this context is cancelled.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g.Go(func() error {
		logger.Info("server: listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if s.transport != nil {
		g.Go(func() error {
			d := remote.NewDispatcher(s.transport, s.registry,
				remote.WithDeadLetter(s.deadLetter),
				remote.WithSource("transport"),
			)
			return d.Run(ctx)
		})
	}

	return g.Wait()
}
