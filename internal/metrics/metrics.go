// Package metrics provides Prometheus metrics for the realty API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "realty"

// Ranking outcomes.
const (
	OutcomeRanked   = "ranked"
	OutcomeCached   = "cached"
	OutcomeFallback = "fallback"
	OutcomeDisabled = "disabled"
	OutcomeEmpty    = "empty"
)

var (
	// HTTPRequestsTotal tracks handled requests by route template and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks handler latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route"},
	)

	// SearchCandidates tracks how many buildings matched a search
	SearchCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "candidates",
			Help:      "Number of candidate buildings returned by a search",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100},
		},
	)

	// RankingsTotal tracks recommendation outcomes
	RankingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ranking",
			Name:      "requests_total",
			Help:      "Total number of ranking attempts by outcome",
		},
		[]string{"outcome"},
	)

	// RankingDuration tracks model round-trip latency
	RankingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ranking",
			Name:      "duration_seconds",
			Help:      "Duration of ranking calls to the language model in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	// RankingBreakerState is 0 closed, 1 half-open, 2 open
	RankingBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ranking",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state of the ranking client (0 closed, 1 half-open, 2 open)",
		},
	)

	// AnalyticsRows tracks loaded dataset sizes
	AnalyticsRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "analytics",
			Name:      "rows",
			Help:      "Number of rows loaded per analytics dataset",
		},
		[]string{"dataset"},
	)
)

// ObserveHTTP records one handled request.
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveRanking records the outcome of one recommendation.
func ObserveRanking(outcome string) {
	RankingsTotal.WithLabelValues(outcome).Inc()
}
