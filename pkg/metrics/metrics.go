// Package metrics provides Prometheus instrumentation for workers, async
// delegates and remote transports.
//
// Collectors are registered on a private registry so embedding applications
// keep control of their own default registry. Expose it with:
//
//	r.Handle("/metrics", metrics.Handler())
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Wait results reported by RecordWait.
const (
	WaitSuccess = "success"
	WaitTimeout = "timeout"
	WaitRefused = "refused"
	WaitPanic   = "panic"
	WaitDropped = "dropped"
)

// ─────────────────────────────────────────────
// Worker metrics
// ─────────────────────────────────────────────

var (
	// WorkerDispatched counts envelopes accepted by a worker.
	WorkerDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "delegate",
			Subsystem: "worker",
			Name:      "dispatched_total",
			Help:      "Envelopes accepted onto a worker queue.",
		},
		[]string{"worker"},
	)

	// WorkerDelivered counts envelopes whose delivery entry point ran.
	WorkerDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "delegate",
			Subsystem: "worker",
			Name:      "delivered_total",
			Help:      "Envelopes delivered on the worker goroutine.",
		},
		[]string{"worker"},
	)

	// WorkerDropped counts envelopes released without delivery.
	WorkerDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "delegate",
			Subsystem: "worker",
			Name:      "dropped_total",
			Help:      "Envelopes refused or released without delivery.",
		},
		[]string{"worker", "reason"}, // "full" | "closed"
	)

	// WorkerPanics counts deliveries that panicked and were recovered.
	WorkerPanics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "delegate",
			Subsystem: "worker",
			Name:      "panics_total",
			Help:      "Deliveries that panicked.",
		},
		[]string{"worker"},
	)

	// WorkerQueueDepth is the number of envelopes waiting on each worker.
	WorkerQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "delegate",
			Subsystem: "worker",
			Name:      "queue_depth",
			Help:      "Envelopes waiting for delivery.",
		},
		[]string{"worker"},
	)

	// WorkerDeliveryDuration tracks how long the delivery entry point runs.
	WorkerDeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "delegate",
			Subsystem: "worker",
			Name:      "delivery_duration_seconds",
			Help:      "Time spent inside delivery entry points.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
		[]string{"worker"},
	)
)

// ─────────────────────────────────────────────
// Async + remote metrics
// ─────────────────────────────────────────────

var (
	// AsyncWaits counts blocking-wait invocations by outcome.
	AsyncWaits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "delegate",
			Subsystem: "async",
			Name:      "wait_total",
			Help:      "Blocking-wait invocations by result.",
		},
		[]string{"result"}, // "success" | "timeout" | "refused" | "panic" | "dropped"
	)

	// RemoteMessages counts remote delegate traffic.
	RemoteMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "delegate",
			Subsystem: "remote",
			Name:      "messages_total",
			Help:      "Remote delegate messages by direction and status.",
		},
		[]string{"direction", "status"}, // "send"|"recv", "ok"|"error"|"unknown"
	)
)

// ─────────────────────────────────────────────
// Registry
// ─────────────────────────────────────────────

// DefaultRegistry holds every collector defined in this package.
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(collectors.NewGoCollector())
	DefaultRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	DefaultRegistry.MustRegister(
		WorkerDispatched,
		WorkerDelivered,
		WorkerDropped,
		WorkerPanics,
		WorkerQueueDepth,
		WorkerDeliveryDuration,
		AsyncWaits,
		RemoteMessages,
	)
}

// Handler exposes DefaultRegistry in the Prometheus text and OpenMetrics formats.
func Handler() http.Handler {
	return promhttp.HandlerFor(DefaultRegistry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

// ObserveDelivery records one delivery on worker:
//
//	defer metrics.ObserveDelivery(name, time.Now())
func ObserveDelivery(worker string, start time.Time) {
	WorkerDelivered.WithLabelValues(worker).Inc()
	WorkerDeliveryDuration.WithLabelValues(worker).Observe(time.Since(start).Seconds())
}

// RecordWait records the outcome of a blocking-wait invocation.
func RecordWait(result string) {
	AsyncWaits.WithLabelValues(result).Inc()
}

// RecordRemote records a remote message.
func RecordRemote(direction, status string) {
	RemoteMessages.WithLabelValues(direction, status).Inc()
}
