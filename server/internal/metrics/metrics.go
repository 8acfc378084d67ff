package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "canvashub"

// Metrics holds the Prometheus instruments for the sync server.
type Metrics struct {
	// ActiveSessions is the number of currently open WebSocket sessions.
	ActiveSessions prometheus.Gauge

	// MessagesTotal counts inbound messages by envelope type. Frames that
	// fail to decode are counted under type="malformed".
	MessagesTotal *prometheus.CounterVec

	// BroadcastsTotal counts fan-out rounds (one per applied edit).
	BroadcastsTotal prometheus.Counter

	// SendFailures counts per-recipient delivery failures during broadcast.
	// Each failure also removes the recipient's session.
	SendFailures prometheus.Counter

	// RateLimited counts inbound edits dropped by the per-session limiter.
	RateLimited prometheus.Counter
}

// New builds and registers the instruments with reg. Tests pass a fresh
// prometheus.NewRegistry so instances never collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "active_sessions",
			Help:      "Number of open WebSocket sessions.",
		}),
		MessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "messages_total",
			Help:      "Inbound messages by envelope type.",
		}, []string{"type"}),
		BroadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "broadcasts_total",
			Help:      "Broadcast fan-out rounds performed.",
		}),
		SendFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "send_failures_total",
			Help:      "Per-recipient delivery failures during broadcast.",
		}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "rate_limited_total",
			Help:      "Inbound edits dropped by the per-session rate limiter.",
		}),
	}
}
