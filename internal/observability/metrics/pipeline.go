package metrics

import "time"

// CacheTier identifies which fallback tier served a feed request.
type CacheTier string

// Cache tiers, in degradation order.
const (
	CacheTierMemory  CacheTier = "memory"
	CacheTierDurable CacheTier = "durable"
	CacheTierNone    CacheTier = "none"
)

// RecordFeedFetch records one fetch attempt for a feed.
// Result should be one of success, failure, cache_hit, breaker_open.
func RecordFeedFetch(feed, result string) {
	FeedFetchesTotal.WithLabelValues(feed, result).Inc()
}

// RecordCacheServe records which tier satisfied a degraded fetch.
func RecordCacheServe(tier CacheTier) {
	CacheServesTotal.WithLabelValues(string(tier)).Inc()
}

// RecordBreakerOpen records a per-feed breaker opening.
func RecordBreakerOpen(feed string) {
	BreakerOpensTotal.WithLabelValues(feed).Inc()
}

// SetTrackedScopes updates the live scope-count gauge.
func SetTrackedScopes(n int) {
	TrackedScopes.Set(float64(n))
}

// RecordItemsNormalized records how many entries a feed yielded this fetch.
func RecordItemsNormalized(feed string, count int) {
	ItemsNormalizedTotal.WithLabelValues(feed).Add(float64(count))
}

// RecordPollDuration records the duration of one full batch poll.
func RecordPollDuration(d time.Duration) {
	PollDuration.Observe(d.Seconds())
}

// RecordClassification records one produced classification.
func RecordClassification(level, origin string) {
	ClassificationsTotal.WithLabelValues(level, origin).Inc()
}

// SetDispatchQueueDepth updates the dispatcher queue depth gauge.
func SetDispatchQueueDepth(n int) {
	DispatchQueueDepth.Set(float64(n))
}

// RecordDispatchAdmission records one admission decision.
// Outcome should be one of admitted, window_rejected, dedup_rejected.
func RecordDispatchAdmission(outcome string) {
	DispatchAdmissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordDispatchFlush records one batch flush.
func RecordDispatchFlush() {
	DispatchFlushesTotal.Inc()
}

// RecordDispatchPause records a dispatcher-wide pause.
// Cause should be rate_limit or server_error.
func RecordDispatchPause(cause string) {
	DispatchPausesTotal.WithLabelValues(cause).Inc()
}

// RecordClassifyRPC records one remote classification call.
// Result should be one of success, error, unmappable.
func RecordClassifyRPC(result string, d time.Duration) {
	ClassifyRPCTotal.WithLabelValues(result).Inc()
	ClassifyRPCDuration.Observe(d.Seconds())
}
