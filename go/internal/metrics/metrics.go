// Package metrics records sync and relay activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Snapshot outcomes reported by guest subscriptions.
const (
	SnapshotInitial   = "initial"
	SnapshotApplied   = "applied"
	SnapshotMalformed = "malformed"
	SnapshotError     = "error"
)

// Collector defines the interface for collecting session metrics
type Collector interface {
	RecordPublish(success bool, duration time.Duration)
	RecordSnapshot(result string)
	RecordReconcile(field string)
	RecordExpired(role string)
	RecordRelayConnection(delta int)
	RecordRelayBroadcast(recipients int)
}

// NoOp is used when metrics aren't needed
type NoOp struct{}

func (NoOp) RecordPublish(bool, time.Duration) {}
func (NoOp) RecordSnapshot(string)             {}
func (NoOp) RecordReconcile(string)            {}
func (NoOp) RecordExpired(string)              {}
func (NoOp) RecordRelayConnection(int)         {}
func (NoOp) RecordRelayBroadcast(int)          {}

// Prometheus implements Collector on its own registry so several instances can
// coexist in one process (tests, embedded relays).
type Prometheus struct {
	registry *prometheus.Registry

	publishes        *prometheus.CounterVec
	publishDuration  prometheus.Histogram
	snapshots        *prometheus.CounterVec
	reconciled       *prometheus.CounterVec
	expired          *prometheus.CounterVec
	relayConnections prometheus.Gauge
	relayBroadcasts  prometheus.Counter
	relayRecipients  prometheus.Histogram
}

func NewPrometheus() *Prometheus {
	m := &Prometheus{
		registry: prometheus.NewRegistry(),
		publishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emdrtap_publish_total",
				Help: "Host state writes to the document store",
			},
			[]string{"status"},
		),
		publishDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "emdrtap_publish_duration_seconds",
				Help:    "Latency of host state writes",
				Buckets: prometheus.DefBuckets,
			},
		),
		snapshots: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emdrtap_snapshots_total",
				Help: "Remote snapshots received by guests",
			},
			[]string{"result"},
		),
		reconciled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emdrtap_reconciled_fields_total",
				Help: "Fields changed by reconciliation",
			},
			[]string{"field"},
		),
		expired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emdrtap_sessions_expired_total",
				Help: "Playback runs that reached their duration",
			},
			[]string{"role"},
		),
		relayConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "emdrtap_relay_connections",
				Help: "Open relay WebSocket connections",
			},
		),
		relayBroadcasts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "emdrtap_relay_broadcasts_total",
				Help: "Snapshots fanned out by the relay",
			},
		),
		relayRecipients: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "emdrtap_relay_broadcast_recipients",
				Help:    "Connections reached per relay broadcast",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
			},
		),
	}

	m.registry.MustRegister(
		m.publishes,
		m.publishDuration,
		m.snapshots,
		m.reconciled,
		m.expired,
		m.relayConnections,
		m.relayBroadcasts,
		m.relayRecipients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Prometheus) RecordPublish(success bool, duration time.Duration) {
	m.publishes.WithLabelValues(status(success)).Inc()
	m.publishDuration.Observe(duration.Seconds())
}

func (m *Prometheus) RecordSnapshot(result string) {
	m.snapshots.WithLabelValues(result).Inc()
}

func (m *Prometheus) RecordReconcile(field string) {
	m.reconciled.WithLabelValues(field).Inc()
}

func (m *Prometheus) RecordExpired(role string) {
	m.expired.WithLabelValues(role).Inc()
}

func (m *Prometheus) RecordRelayConnection(delta int) {
	m.relayConnections.Add(float64(delta))
}

func (m *Prometheus) RecordRelayBroadcast(recipients int) {
	m.relayBroadcasts.Inc()
	m.relayRecipients.Observe(float64(recipients))
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Prometheus) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
