package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the marketplace collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	transitions        *prometheus.CounterVec
	conflicts          *prometheus.CounterVec
	sideEffectFailures *prometheus.CounterVec
	notifications      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tixswap_purchase_transitions_total",
				Help: "Committed purchase status transitions",
			},
			[]string{"from", "to"},
		),
		conflicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tixswap_conflicts_total",
				Help: "Requests rejected because of a concurrent or duplicate action",
			},
			[]string{"kind"},
		),
		sideEffectFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tixswap_side_effect_failures_total",
				Help: "Best-effort side effects that failed after a committed transition",
			},
			[]string{"effect"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tixswap_notifications_total",
				Help: "Notifications stored per type",
			},
			[]string{"type"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tixswap_http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

func (m *Metrics) TrackTransition(from, to string) {
	if m == nil {
		return
	}
	if from == "" {
		from = "NONE"
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) TrackConflict(kind string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(kind).Inc()
}

func (m *Metrics) TrackSideEffectFailure(effect string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.WithLabelValues(effect).Inc()
}

func (m *Metrics) TrackNotification(typ string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(typ).Inc()
}

func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, status).Observe(seconds)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SideEffectFailures exposes the failure counter for effect.
func (m *Metrics) SideEffectFailures(effect string) prometheus.Counter {
	return m.sideEffectFailures.WithLabelValues(effect)
}

// Conflicts exposes the conflict counter for kind.
func (m *Metrics) Conflicts(kind string) prometheus.Counter {
	return m.conflicts.WithLabelValues(kind)
}
