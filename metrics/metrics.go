// Package metrics holds the prometheus collectors for the catalog client,
// the cache tiers, the fetch worker, the favorites store and the HTTP API.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TMDB client
	TMDBRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popularmovies_tmdb_requests_total",
			Help: "TMDB requests by request kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: success, http_error, transport_error, rejected
	)

	TMDBRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "popularmovies_tmdb_request_duration_seconds",
			Help:    "Duration of TMDB HTTP calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	ParseErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popularmovies_parse_errors_total",
			Help: "Responses that could not be mapped to records",
		},
		[]string{"kind"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "popularmovies_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Cache tiers
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popularmovies_cache_hits_total",
			Help: "Response cache hits by tier",
		},
		[]string{"tier"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popularmovies_cache_misses_total",
			Help: "Response cache misses by tier",
		},
		[]string{"tier"},
	)

	// Worker
	WorkerQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "popularmovies_worker_queue_depth",
			Help: "Fetch tasks waiting for the background worker",
		},
	)

	WorkerTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popularmovies_worker_tasks_total",
			Help: "Fetch tasks processed by the background worker",
		},
		[]string{"kind", "status"},
	)

	// Favorites store
	FavoritesOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popularmovies_favorites_operations_total",
			Help: "Favorites store operations by type and result",
		},
		[]string{"operation", "result"},
	)

	// HTTP API
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "popularmovies_http_requests_total",
			Help: "HTTP API requests by route pattern, method and status code",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "popularmovies_http_request_duration_seconds",
			Help:    "HTTP API request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

// Result returns the label used for success/failure counters.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
