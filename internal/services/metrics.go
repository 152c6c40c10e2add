// Package services – Prometheus domain metrics.
//
// HTTP-level metrics (request counts, latencies) live in the middleware
// package; the collectors here count domain events: ingested and replayed
// telemetry, relay dispatch attempts and outcomes, and fixed-window rate
// limit denials. Label cardinality is kept bounded (status and scope take a
// handful of values).
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// telemetryIngested counts telemetry events persisted for the first time.
	telemetryIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_events_ingested_total",
			Help: "Total number of telemetry events persisted.",
		},
	)

	// telemetryReplayed counts ingestion requests short-circuited by the
	// idempotency guard (duplicate eventId).
	telemetryReplayed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_events_replayed_total",
			Help: "Total number of telemetry requests answered from a prior outcome.",
		},
	)

	// relayAttempts counts individual downstream delivery attempts, including
	// retries.
	relayAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_dispatch_attempts_total",
			Help: "Total number of downstream relay delivery attempts.",
		},
	)

	// relayOutcomes counts recorded relay outcomes by final status.
	relayOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_outcomes_total",
			Help: "Total number of recorded relay outcomes.",
		},
		[]string{"status"},
	)

	// rateLimitDenials counts fixed-window admission denials by scope
	// ("device" or "client").
	rateLimitDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_denials_total",
			Help: "Total number of fixed-window rate limit denials.",
		},
		[]string{"scope"},
	)
)

func init() {
	prometheus.MustRegister(
		telemetryIngested,
		telemetryReplayed,
		relayAttempts,
		relayOutcomes,
		rateLimitDenials,
	)
}
