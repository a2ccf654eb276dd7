// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Analyses counts calculations served by the HTTP API.
	Analyses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rental_forecast_analyses_total",
			Help: "Number of deal analyses by kind and outcome",
		},
		[]string{"kind", "status"},
	)

	// SimulationTrials counts completed Monte Carlo trials.
	SimulationTrials = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rental_forecast_simulation_trials_total",
			Help: "Number of completed Monte Carlo trials",
		},
	)

	// IRRUnavailable counts IRR solves that produced no rate.
	IRRUnavailable = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rental_forecast_irr_unavailable_total",
			Help: "IRR solves that were undefined or did not converge",
		},
		[]string{"status"},
	)

	// RequestDuration observes HTTP handler latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rental_forecast_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "code"},
	)

	// CacheLookups counts response cache hits and misses.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rental_forecast_cache_lookups_total",
			Help: "Response cache lookups by result",
		},
		[]string{"result"},
	)
)
