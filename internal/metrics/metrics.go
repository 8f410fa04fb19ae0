// Package metrics holds the prometheus collectors shared by the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rankd"

var (
	// CacheRequests counts result-cache lookups by outcome: hit, miss or error.
	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Result cache lookups by outcome",
		},
		[]string{"result"},
	)

	// CacheInvalidated counts keys removed by cascade invalidation.
	CacheInvalidated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidated_keys_total",
			Help:      "Cache keys removed by invalidation",
		},
	)

	// VectorCache counts document-vector cache lookups by outcome.
	VectorCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vector_cache_requests_total",
			Help:      "Document vector cache lookups by outcome",
		},
		[]string{"result"},
	)

	// SearchDuration observes per-kind search latency.
	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Per-kind search duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"kind", "status"},
	)

	// TrendingRecompute counts recompute cycles by status: success, partial or timeout.
	TrendingRecompute = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trending_recompute_total",
			Help:      "Trending recompute cycles by status",
		},
		[]string{"status"},
	)

	// TrendingRecomputeErrors counts items whose score could not be persisted.
	TrendingRecomputeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trending_recompute_errors_total",
			Help:      "Trending recompute failures by kind",
		},
		[]string{"kind"},
	)

	TrendingRecomputeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trending_recompute_duration_seconds",
			Help:      "Duration of a full trending recompute cycle",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		},
	)

	TrendingLastRecompute = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trending_last_recompute_timestamp_seconds",
			Help:      "Unix time of the last completed trending recompute",
		},
	)

	// TrendingScored is the number of items scored per kind in the last cycle.
	TrendingScored = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trending_scored_items",
			Help:      "Items scored per kind in the last recompute",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(CacheRequests)
	prometheus.MustRegister(CacheInvalidated)
	prometheus.MustRegister(VectorCache)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(TrendingRecompute)
	prometheus.MustRegister(TrendingRecomputeErrors)
	prometheus.MustRegister(TrendingRecomputeDuration)
	prometheus.MustRegister(TrendingLastRecompute)
	prometheus.MustRegister(TrendingScored)
}
