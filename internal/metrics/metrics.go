// Package metrics exposes Prometheus counters for ledger activity.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "standings"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	submissions     *prometheus.CounterVec
	writeConflicts  prometheus.Counter
	transportErrors *prometheus.CounterVec
	refreshes       *prometheus.CounterVec
	viewers         prometheus.Gauge
}

// New registers the counters on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Ledger mutations by operation and outcome.",
		}, []string{"op", "outcome"}),
		writeConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_conflicts_total",
			Help:      "Snapshot writes rejected because of a stale version.",
		}),
		transportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_errors_total",
			Help:      "Snapshot store failures by operation.",
		}, []string{"op"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refreshes_total",
			Help:      "Snapshot refreshes by result.",
		}, []string{"result"}),
		viewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_viewers",
			Help:      "Open websocket connections.",
		}),
	}
	m.registry.MustRegister(
		m.submissions,
		m.writeConflicts,
		m.transportErrors,
		m.refreshes,
		m.viewers,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Submission(op, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) WriteConflict() {
	if m == nil {
		return
	}
	m.writeConflicts.Inc()
}

func (m *Metrics) TransportError(op string) {
	if m == nil {
		return
	}
	m.transportErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) Refresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) ViewerConnected() {
	if m == nil {
		return
	}
	m.viewers.Inc()
}

func (m *Metrics) ViewerDisconnected() {
	if m == nil {
		return
	}
	m.viewers.Dec()
}
