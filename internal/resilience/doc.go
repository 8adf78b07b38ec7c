// Package resilience provides reliability and fault tolerance patterns for the pipeline.
// It includes circuit breakers, retry logic, and the per-feed cache/breaker layer
// that keeps flaky news sources from degrading the whole poll.
//
// The package supports:
//   - Per-scope feed caching with cooldown-based circuit breaking (feedcache)
//   - Circuit breakers for external API calls (remote classifiers, durable store)
//   - Retry logic with exponential backoff and jitter for store operations
//
// Usage Example:
//
//	guard := feedcache.New(store, nil, logger, feedcache.DefaultConfig())
//	items := guard.Fetch(ctx, scope, networkFn)
//
//	cb := circuitbreaker.New(circuitbreaker.OpenAIAPIConfig())
//	result, err := cb.Execute(func() (interface{}, error) {
//	    return callRemoteClassifier()
//	})
package resilience
