// Package metrics exposes Prometheus collectors for the session store.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sessionstore"

// Operation outcome labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics records store operation counts, latencies, and sweep results.
//
// A nil *Metrics is valid and records nothing, so stores built without
// metrics need no special casing.
type Metrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	expired    *prometheus.CounterVec
	pending    prometheus.Gauge
}

// New creates collectors registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Store operations by name and result.",
		}, []string{"op", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Time from submission to completion of store operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"op"}),
		expired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_sessions_removed_total",
			Help:      "Expired session rows removed, by path (read or sweep).",
		}, []string{"path"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queued_operations",
			Help:      "Operations waiting for the store worker.",
		}),
	}
	m.registry.MustRegister(m.operations, m.duration, m.expired, m.pending)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the collectors in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveOperation records one completed store operation.
func (m *Metrics) ObserveOperation(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ExpiredOnRead counts a row found expired by a read.
func (m *Metrics) ExpiredOnRead() {
	if m == nil {
		return
	}
	m.expired.WithLabelValues("read").Inc()
}

// Swept counts rows removed by one sweep.
func (m *Metrics) Swept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.expired.WithLabelValues("sweep").Add(float64(n))
}

// SetQueued reports the current queue depth.
func (m *Metrics) SetQueued(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}
