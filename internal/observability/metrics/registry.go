// Package metrics provides centralized Prometheus metrics for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Feed fetch metrics track per-source fetch outcomes and cache behavior.
var (
	// FeedFetchesTotal counts fetch attempts by feed and outcome
	// (success, failure, cache_hit, breaker_open).
	FeedFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_fetches_total",
			Help: "Total number of feed fetch attempts by outcome",
		},
		[]string{"feed", "result"},
	)

	// CacheServesTotal counts fallback serves by cache tier
	// (memory, durable, none).
	CacheServesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_cache_serves_total",
			Help: "Total number of cache serves by tier",
		},
		[]string{"tier"},
	)

	// BreakerOpensTotal counts circuit breaker open transitions per feed
	BreakerOpensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_breaker_opens_total",
			Help: "Total number of per-feed circuit breaker open transitions",
		},
		[]string{"feed"},
	)

	// TrackedScopes tracks the number of live in-memory cache scopes
	TrackedScopes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_cache_tracked_scopes",
			Help: "Number of (feed, language) scopes currently cached in memory",
		},
	)

	// ItemsNormalizedTotal counts normalized items per feed
	ItemsNormalizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_items_normalized_total",
			Help: "Total number of feed entries normalized into news items",
		},
		[]string{"feed"},
	)

	// PollDuration measures full batch poll duration in seconds
	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_poll_duration_seconds",
			Help:    "Duration of one batch poll across all configured feeds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Classification metrics track keyword and remote classifier activity.
var (
	// ClassificationsTotal counts classifications by level and origin
	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "threat_classifications_total",
			Help: "Total number of threat classifications produced",
		},
		[]string{"level", "origin"},
	)

	// DispatchQueueDepth tracks the AI dispatcher's pending queue length
	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ai_dispatch_queue_depth",
			Help: "Number of jobs waiting in the AI dispatch queue",
		},
	)

	// DispatchAdmissionsTotal counts admission decisions
	// (admitted, window_rejected, dedup_rejected).
	DispatchAdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_dispatch_admissions_total",
			Help: "Total number of AI dispatch admission decisions by outcome",
		},
		[]string{"outcome"},
	)

	// DispatchFlushesTotal counts batch flushes
	DispatchFlushesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_dispatch_flushes_total",
			Help: "Total number of AI dispatch batch flushes",
		},
	)

	// DispatchPausesTotal counts dispatcher-wide pauses by cause
	// (rate_limit, server_error).
	DispatchPausesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_dispatch_pauses_total",
			Help: "Total number of dispatcher-wide pause events by cause",
		},
		[]string{"cause"},
	)

	// ClassifyRPCTotal counts remote classification calls by result
	// (success, error, unmappable).
	ClassifyRPCTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_classify_rpc_total",
			Help: "Total number of remote classification RPCs by result",
		},
		[]string{"result"},
	)

	// ClassifyRPCDuration measures remote classification call duration
	ClassifyRPCDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ai_classify_rpc_duration_seconds",
			Help:    "Duration of remote classification RPCs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
