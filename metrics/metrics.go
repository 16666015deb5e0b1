package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"memory-pairs-server/game"
)

// Round outcome labels.
const (
	OutcomePerfect   = "perfect"
	OutcomeCompleted = "completed"
	OutcomeAbandoned = "abandoned"
)

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	RoundsEnded    *prometheus.CounterVec
	RoundSeconds   prometheus.Histogram
	RoundMoves     prometheus.Histogram
	ActiveSessions prometheus.Gauge
	ConnectedWS    prometheus.Gauge
	RateLimited    prometheus.Counter
	PersistErrors  prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		RoundsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "memory_rounds_ended_total",
			Help: "Rounds scored, by outcome.",
		}, []string{"outcome"}),
		RoundSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "memory_round_duration_seconds",
			Help:    "Duration of completed timed rounds.",
			Buckets: []float64{10, 20, 30, 45, 60, 90, 120, 180, 300},
		}),
		RoundMoves: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "memory_round_moves",
			Help:    "Moves used by completed rounds.",
			Buckets: prometheus.LinearBuckets(4, 4, 10),
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_active_sessions",
			Help: "Sessions currently held by the server.",
		}),
		ConnectedWS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_websocket_clients",
			Help: "Connected WebSocket clients.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memory_ws_rate_limited_total",
			Help: "Inbound WebSocket messages dropped by the rate limiter.",
		}),
		PersistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "memory_persist_errors_total",
			Help: "Failed writes of rounds or statistics.",
		}),
	}
	reg.MustRegister(m.RoundsEnded, m.RoundSeconds, m.RoundMoves, m.ActiveSessions, m.ConnectedWS, m.RateLimited, m.PersistErrors)
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

// Outcome classifies a scored round.
func Outcome(summary game.RoundSummary) string {
	switch {
	case summary.Perfect:
		return OutcomePerfect
	case summary.Completed:
		return OutcomeCompleted
	default:
		return OutcomeAbandoned
	}
}

// ObserveRound records a scored round. Safe on a nil receiver.
func (m *Metrics) ObserveRound(summary game.RoundSummary) {
	if m == nil {
		return
	}
	m.RoundsEnded.WithLabelValues(Outcome(summary)).Inc()
	if summary.Completed {
		m.RoundMoves.Observe(float64(summary.Moves))
		if summary.Timed {
			m.RoundSeconds.Observe(summary.ElapsedSec)
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// The helpers below are safe on a nil receiver so callers can run without metrics.

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.ActiveSessions.Inc()
	}
}

func (m *Metrics) SessionClosed() {
	if m != nil {
		m.ActiveSessions.Dec()
	}
}

func (m *Metrics) ClientConnected() {
	if m != nil {
		m.ConnectedWS.Inc()
	}
}

func (m *Metrics) ClientDisconnected() {
	if m != nil {
		m.ConnectedWS.Dec()
	}
}

func (m *Metrics) MessageRateLimited() {
	if m != nil {
		m.RateLimited.Inc()
	}
}

func (m *Metrics) PersistFailed() {
	if m != nil {
		m.PersistErrors.Inc()
	}
}
