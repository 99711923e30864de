package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache metrics
var (
	// CacheLookupsTotal counts Current() calls by the tier that answered.
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "totobot_cache_lookups_total",
			Help: "Draw state lookups by serving tier (memory, store, live, none)",
		},
		[]string{"tier"},
	)

	// CacheDegradedTotal counts lookups answered with a stale last-known state.
	CacheDegradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "totobot_cache_degraded_total",
			Help: "Lookups that fell back to the last known state after a failed fetch",
		},
	)
)

// Source metrics
var (
	// FetchTotal counts live fetch attempts by result (success, failure).
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "totobot_fetch_total",
			Help: "Live source fetches by result",
		},
		[]string{"result"},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "totobot_fetch_duration_seconds",
			Help:    "Live source fetch duration in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
		},
	)

	// BreakerState tracks the fetch circuit breaker (0=closed, 1=half-open, 2=open).
	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "totobot_fetch_breaker_state",
			Help: "Fetch circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// Broadcast metrics
var (
	// DeliveriesTotal counts per-recipient delivery outcomes (sent, failed, unreachable).
	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "totobot_deliveries_total",
			Help: "Per-recipient delivery outcomes",
		},
		[]string{"result"},
	)

	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "totobot_broadcasts_total",
			Help: "Completed broadcasts",
		},
	)

	BroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "totobot_broadcast_duration_seconds",
			Help:    "Time to deliver one broadcast to every recipient",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	Subscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "totobot_subscribers",
			Help: "Recipients enumerated by the most recent broadcast",
		},
	)
)

// Bot metrics
var (
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "totobot_commands_total",
			Help: "Bot commands handled by command and status",
		},
		[]string{"command", "status"},
	)
)
