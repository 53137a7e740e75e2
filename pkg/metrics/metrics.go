package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdesk_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// HistoryEvents counts audit history rows written, labelled by entity kind and action.
	HistoryEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opsdesk_history_events_total",
			Help: "Total number of history events recorded",
		},
		[]string{"kind", "action"},
	)

	// NotificationsFannedOut counts notification rows created by the signal fan-out.
	NotificationsFannedOut = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "opsdesk_notifications_fanned_out_total",
			Help: "Total number of notifications created by signal fan-out",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opsdesk_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
