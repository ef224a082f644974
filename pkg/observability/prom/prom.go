// Package prom implements the observability hooks with Prometheus metrics.
package prom

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/mindcanvas/pkg/observability"
)

const namespace = "mindcanvas"

// Metrics implements every hook interface of the observability package.
type Metrics struct {
	registry *prometheus.Registry

	HistoryOps      *prometheus.CounterVec
	Rejections      *prometheus.CounterVec
	RemoteEvents    *prometheus.CounterVec
	LayoutDuration  prometheus.Histogram
	LayoutMoved     prometheus.Histogram
	Published       *prometheus.CounterVec
	Received        *prometheus.CounterVec
	Dropped         *prometheus.CounterVec
	StorageDuration *prometheus.HistogramVec
	StorageErrors   *prometheus.CounterVec
	RelayClients    *prometheus.GaugeVec
	RelayFanout     prometheus.Histogram
}

var (
	_ observability.EditorHooks  = (*Metrics)(nil)
	_ observability.CollabHooks  = (*Metrics)(nil)
	_ observability.StorageHooks = (*Metrics)(nil)
	_ observability.RelayHooks   = (*Metrics)(nil)
)

// New creates the metrics and registers them with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		HistoryOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "history",
			Name:      "operations_total",
			Help:      "History operations by kind and operation (commit, undo, redo)",
		}, []string{"op", "kind"}),

		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "rejections_total",
			Help:      "Gestures rejected by the editor",
		}, []string{"op", "code"}),

		RemoteEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "editor",
			Name:      "remote_events_total",
			Help:      "Collaboration events applied to the local document, by outcome",
		}, []string{"entity", "action", "result"}),

		LayoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "layout",
			Name:      "duration_seconds",
			Help:      "Auto-layout duration in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),

		LayoutMoved: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "layout",
			Name:      "moved_nodes",
			Help:      "Nodes repositioned per auto-layout run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),

		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collab",
			Name:      "published_total",
			Help:      "Collaboration events published",
		}, []string{"transport", "entity", "status"}),

		Received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collab",
			Name:      "received_total",
			Help:      "Collaboration events received",
		}, []string{"transport", "entity"}),

		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "collab",
			Name:      "dropped_total",
			Help:      "Collaboration events dropped before delivery",
		}, []string{"transport", "reason"}),

		StorageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "duration_seconds",
			Help:      "Persistence call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "op"}),

		StorageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Failed persistence calls",
		}, []string{"backend", "op"}),

		RelayClients: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "clients",
			Help:      "Connected websocket clients per document",
		}, []string{"document"}),

		RelayFanout: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "fanout",
			Help:      "Recipients per relayed event",
			Buckets:   prometheus.LinearBuckets(0, 1, 10),
		}),
	}

	m.registry.MustRegister(
		m.HistoryOps, m.Rejections, m.RemoteEvents, m.LayoutDuration, m.LayoutMoved,
		m.Published, m.Received, m.Dropped, m.StorageDuration, m.StorageErrors,
		m.RelayClients, m.RelayFanout,
	)
	return m
}

// Registry returns the Prometheus registry holding the metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Install registers m as the global editor, collab, storage and relay hooks.
func (m *Metrics) Install() {
	observability.SetEditorHooks(m)
	observability.SetCollabHooks(m)
	observability.SetStorageHooks(m)
	observability.SetRelayHooks(m)
}

func (m *Metrics) OnCommit(_ context.Context, kind string) {
	m.HistoryOps.WithLabelValues("commit", kind).Inc()
}

func (m *Metrics) OnUndo(_ context.Context, kind string) {
	m.HistoryOps.WithLabelValues("undo", kind).Inc()
}

func (m *Metrics) OnRedo(_ context.Context, kind string) {
	m.HistoryOps.WithLabelValues("redo", kind).Inc()
}

func (m *Metrics) OnRejected(_ context.Context, op, code string) {
	m.Rejections.WithLabelValues(op, code).Inc()
}

func (m *Metrics) OnRemoteApply(_ context.Context, entity, action, result string) {
	m.RemoteEvents.WithLabelValues(entity, action, result).Inc()
}

func (m *Metrics) OnLayout(_ context.Context, moved int, d time.Duration) {
	m.LayoutDuration.Observe(d.Seconds())
	m.LayoutMoved.Observe(float64(moved))
}

func (m *Metrics) OnPublish(_ context.Context, transport, entity string, err error) {
	m.Published.WithLabelValues(transport, entity, status(err)).Inc()
}

func (m *Metrics) OnReceive(_ context.Context, transport, entity string) {
	m.Received.WithLabelValues(transport, entity).Inc()
}

func (m *Metrics) OnDrop(_ context.Context, transport, reason string) {
	m.Dropped.WithLabelValues(transport, reason).Inc()
}

func (m *Metrics) OnSave(_ context.Context, backend string, d time.Duration, err error) {
	m.observeStorage(backend, "save", d, err)
}

func (m *Metrics) OnLoad(_ context.Context, backend string, d time.Duration, err error) {
	m.observeStorage(backend, "load", d, err)
}

func (m *Metrics) observeStorage(backend, op string, d time.Duration, err error) {
	m.StorageDuration.WithLabelValues(backend, op).Observe(d.Seconds())
	if err != nil {
		m.StorageErrors.WithLabelValues(backend, op).Inc()
	}
}

func (m *Metrics) OnJoin(_ context.Context, docID string) {
	m.RelayClients.WithLabelValues(docID).Inc()
}

func (m *Metrics) OnLeave(_ context.Context, docID string) {
	m.RelayClients.WithLabelValues(docID).Dec()
}

func (m *Metrics) OnRelay(_ context.Context, _ string, recipients int) {
	m.RelayFanout.Observe(float64(recipients))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
