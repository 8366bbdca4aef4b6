package queue

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"jobq/internal/store"
)

// Metrics are the queue's Prometheus collectors.
type Metrics struct {
	Submissions *prometheus.CounterVec
	Leases      *prometheus.CounterVec
	Renewals    *prometheus.CounterVec
	Completions *prometheus.CounterVec
	Reaps       *prometheus.CounterVec
	Reclaimed   prometheus.Counter
	Draining    prometheus.Gauge

	// EventsDropped counts session events a slow watcher missed.
	EventsDropped prometheus.Counter
}

// NewMetrics registers the queue collectors with reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jobq",
			Name:      "submissions_total",
			Help:      "Blob submissions by outcome.",
		}, []string{"outcome"}),
		Leases: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jobq",
			Name:      "leases_total",
			Help:      "Lease requests by outcome.",
		}, []string{"outcome"}),
		Renewals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jobq",
			Name:      "renewals_total",
			Help:      "Lease renewals by outcome.",
		}, []string{"outcome"}),
		Completions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jobq",
			Name:      "completions_total",
			Help:      "Result completions by outcome.",
		}, []string{"outcome"}),
		Reaps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jobq",
			Name:      "reaps_total",
			Help:      "Session reaps by outcome.",
		}, []string{"outcome"}),
		Reclaimed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "jobq",
			Name:      "reclaimed_leases_total",
			Help:      "Expired leases returned to pending by the reclaimer.",
		}),
		Draining: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "jobq",
			Name:      "sessions_draining",
			Help:      "Sessions currently being reaped.",
		}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "jobq",
			Name:      "session_events_dropped_total",
			Help:      "Session events not delivered because a watcher fell behind.",
		}),
	}
}

// outcome maps an error to a metric label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, store.ErrUnknownSession):
		return "unknown_session"
	case errors.Is(err, store.ErrLeaseExpired):
		return "expired"
	case errors.Is(err, store.ErrSessionBusy):
		return "busy"
	case errors.Is(err, store.ErrCollision):
		return "collision"
	default:
		return "error"
	}
}
