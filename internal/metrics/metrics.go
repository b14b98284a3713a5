// Package metrics exposes Prometheus collectors for the synchronizer.
//
// All methods are safe on a nil *Metrics, so components can be built without
// metrics in tests and small tools.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "repsync"

// Metrics groups the collectors registered by New.
type Metrics struct {
	operations     *prometheus.CounterVec
	inFlight       *prometheus.GaugeVec
	remoteDuration *prometheus.HistogramVec
	notifications  *prometheus.CounterVec
	cartMerges     *prometheus.CounterVec
}

// New registers the collectors with reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated from the global registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Settled optimistic operations by kind and outcome.",
		}, []string{"kind", "outcome"}),
		inFlight: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "operations_in_flight",
			Help:      "Optimistic operations awaiting a remote response.",
		}, []string{"kind"}),
		remoteDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Latency of remote calls issued by the reconciliation engine.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Inbound push notifications by result (delivered, suppressed, malformed).",
		}, []string{"result"}),
		cartMerges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cart_merges_total",
			Help:      "Cart merge attempts by outcome.",
		}, []string{"outcome"}),
	}
}

// OperationSettled counts a committed, rolled back, or rejected operation.
func (m *Metrics) OperationSettled(kind, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(kind, outcome).Inc()
}

// OperationStarted increments the in-flight gauge for kind.
func (m *Metrics) OperationStarted(kind string) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(kind).Inc()
}

// OperationFinished decrements the in-flight gauge for kind.
func (m *Metrics) OperationFinished(kind string) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(kind).Dec()
}

// ObserveRemote records the duration of one remote call.
func (m *Metrics) ObserveRemote(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.remoteDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// Notification counts one inbound push message.
func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

// CartMerge counts one cart merge attempt.
func (m *Metrics) CartMerge(outcome string) {
	if m == nil {
		return
	}
	m.cartMerges.WithLabelValues(outcome).Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
