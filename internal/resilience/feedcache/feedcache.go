// Package feedcache implements the per-source resilience layer: a bounded
// in-memory cache, a durable fallback cache, and a consecutive-failure
// circuit breaker, all keyed per (feed, language) scope.
//
// The contract is deliberately one-sided: Fetch never returns an error.
// Transient source failures are absorbed here and degrade to the best
// available cached data, so callers upstream never see a feed fail, only
// shrink.
package feedcache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"threatwatch/internal/domain/entity"
	"threatwatch/internal/observability/metrics"
	"threatwatch/internal/repository"
	"threatwatch/pkg/clock"
)

// Scope is the composite cache/breaker key. The same source is cached
// independently per active language.
type Scope struct {
	Feed string
	Lang string
}

// Key returns the durable-store key for the scope.
func (s Scope) Key() string {
	return "feed:" + s.Feed + "::" + s.Lang
}

// legacyKey is the language-unscoped key used by installations that predate
// per-language caching.
func (s Scope) legacyKey() string {
	return "feed:" + s.Feed
}

// NetworkFn performs the actual fetch-and-normalize for a scope. An error
// covers both network failures and whole-document parse failures.
type NetworkFn func(ctx context.Context) ([]*entity.NewsItem, error)

// Config tunes the guard. Zero values are replaced by the defaults below.
type Config struct {
	// TTL is how long an in-memory entry is served without re-fetching.
	TTL time.Duration

	// FailureThreshold is the consecutive-failure count that opens the
	// breaker for a scope.
	FailureThreshold int

	// Cooldown is how long an open breaker shields the network.
	Cooldown time.Duration

	// MaxScopes caps the number of in-memory entries.
	MaxScopes int

	// DurableTTL is the expiry passed to durable-cache writes.
	DurableTTL time.Duration

	// DefaultLang gates the legacy-key migration fallback on durable reads.
	DefaultLang string
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		TTL:              10 * time.Minute,
		FailureThreshold: 2,
		Cooldown:         5 * time.Minute,
		MaxScopes:        100,
		DurableTTL:       24 * time.Hour,
		DefaultLang:      entity.DefaultLang,
	}
}

// cacheEntry holds one scope's normalized items plus capture time. Entries
// are replaced wholesale on every successful fetch.
type cacheEntry struct {
	items     []*entity.NewsItem
	fetchedAt time.Time
}

// breakerState tracks consecutive failures and the cooldown expiry for one
// scope. States are garbage-collected once the cooldown lapses.
type breakerState struct {
	failures      int
	cooldownUntil time.Time
}

// storedEntry is the durable-cache serialization of a cacheEntry.
type storedEntry struct {
	Items    []*entity.NewsItem `json:"items"`
	CachedAt time.Time          `json:"cachedAt"`
}

// Guard is the resilience layer for feed fetches. Construct one per pipeline
// with New; the zero value is not usable.
type Guard struct {
	cfg    Config
	store  repository.CacheStore
	clock  clock.Clock
	logger *slog.Logger

	mu       sync.Mutex
	entries  map[Scope]*cacheEntry
	breakers map[Scope]*breakerState
}

// New creates a Guard. store may be nil to run without a durable fallback;
// clk and logger default to the system clock and slog.Default().
func New(store repository.CacheStore, clk clock.Clock, logger *slog.Logger, cfg Config) *Guard {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.MaxScopes <= 0 {
		cfg.MaxScopes = def.MaxScopes
	}
	if cfg.DurableTTL <= 0 {
		cfg.DurableTTL = def.DurableTTL
	}
	if cfg.DefaultLang == "" {
		cfg.DefaultLang = def.DefaultLang
	}
	if clk == nil {
		clk = &clock.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Guard{
		cfg:      cfg,
		store:    store,
		clock:    clk,
		logger:   logger,
		entries:  make(map[Scope]*cacheEntry),
		breakers: make(map[Scope]*breakerState),
	}
}

// Fetch returns the freshest items available for the scope, invoking fn only
// when the breaker is closed and the in-memory entry is missing or stale.
// It never returns an error; the worst case is an empty slice.
func (g *Guard) Fetch(ctx context.Context, scope Scope, fn NetworkFn) []*entity.NewsItem {
	now := g.clock.Now()

	g.mu.Lock()
	if g.coolingDown(scope, now) {
		cached, ok := g.memoryEntryLocked(scope)
		g.mu.Unlock()
		items, tier := g.degrade(ctx, scope, cached, ok)
		metrics.RecordFeedFetch(scope.Feed, "breaker_open")
		metrics.RecordCacheServe(tier)
		return items
	}

	if e, ok := g.entries[scope]; ok && now.Sub(e.fetchedAt) < g.cfg.TTL {
		items := e.items
		g.mu.Unlock()
		metrics.RecordFeedFetch(scope.Feed, "cache_hit")
		metrics.RecordCacheServe(metrics.CacheTierMemory)
		return items
	}
	g.mu.Unlock()

	items, err := fn(ctx)
	if err != nil {
		return g.recordFailure(ctx, scope, err)
	}
	return g.recordSuccess(ctx, scope, items)
}

// coolingDown reports whether the scope's breaker is open. A lapsed cooldown
// self-clears here, so no background timer is needed. Caller holds g.mu.
func (g *Guard) coolingDown(scope Scope, now time.Time) bool {
	b, ok := g.breakers[scope]
	if !ok {
		return false
	}
	if b.cooldownUntil.IsZero() {
		return false
	}
	if now.Before(b.cooldownUntil) {
		return true
	}
	// Cooldown lapsed: drop the state so the next failure run starts at zero.
	delete(g.breakers, scope)
	return false
}

// recordSuccess replaces the scope's in-memory entry, writes through to the
// durable cache, and clears the failure counter.
func (g *Guard) recordSuccess(ctx context.Context, scope Scope, items []*entity.NewsItem) []*entity.NewsItem {
	now := g.clock.Now()

	g.mu.Lock()
	g.sweepLocked(now)
	g.entries[scope] = &cacheEntry{items: items, fetchedAt: now}
	delete(g.breakers, scope)
	tracked := len(g.entries)
	g.mu.Unlock()

	metrics.RecordFeedFetch(scope.Feed, "success")
	metrics.SetTrackedScopes(tracked)

	g.writeThrough(ctx, scope, items, now)
	return items
}

// recordFailure bumps the scope's failure counter, opens the breaker at the
// threshold, and degrades to the best available fallback.
func (g *Guard) recordFailure(ctx context.Context, scope Scope, cause error) []*entity.NewsItem {
	now := g.clock.Now()

	g.mu.Lock()
	b, ok := g.breakers[scope]
	if !ok {
		b = &breakerState{}
		g.breakers[scope] = b
	}
	b.failures++
	if b.failures >= g.cfg.FailureThreshold && b.cooldownUntil.IsZero() {
		b.cooldownUntil = now.Add(g.cfg.Cooldown)
		g.logger.Warn("feed breaker opened",
			slog.String("feed", scope.Feed),
			slog.String("lang", scope.Lang),
			slog.Int("failures", b.failures),
			slog.Time("cooldown_until", b.cooldownUntil),
			slog.Any("error", cause))
		metrics.RecordBreakerOpen(scope.Feed)
	} else {
		g.logger.Warn("feed fetch failed",
			slog.String("feed", scope.Feed),
			slog.String("lang", scope.Lang),
			slog.Int("failures", b.failures),
			slog.Any("error", cause))
	}

	cached, found := g.memoryEntryLocked(scope)
	g.mu.Unlock()

	items, tier := g.degrade(ctx, scope, cached, found)
	metrics.RecordFeedFetch(scope.Feed, "failure")
	metrics.RecordCacheServe(tier)
	return items
}

// memoryEntryLocked returns the scope's in-memory items regardless of age.
// Caller holds g.mu.
func (g *Guard) memoryEntryLocked(scope Scope) ([]*entity.NewsItem, bool) {
	if e, ok := g.entries[scope]; ok {
		return e.items, true
	}
	return nil, false
}

// degrade picks the best fallback tier: the in-memory snapshot taken under
// the lock, then the durable store, then empty. The durable read runs after
// g.mu has been released, so a slow store cannot stall concurrent fetches of
// other scopes.
func (g *Guard) degrade(ctx context.Context, scope Scope, cached []*entity.NewsItem, found bool) ([]*entity.NewsItem, metrics.CacheTier) {
	if found {
		return cached, metrics.CacheTierMemory
	}
	if items := g.readDurable(ctx, scope); items != nil {
		return items, metrics.CacheTierDurable
	}
	return []*entity.NewsItem{}, metrics.CacheTierNone
}

// readDurable loads the scope's entry from the durable store. A missing
// language-scoped key for the default language falls back to the legacy
// unscoped key, so upgraded installations keep their cached data. All store
// errors are treated as misses.
func (g *Guard) readDurable(ctx context.Context, scope Scope) []*entity.NewsItem {
	if g.store == nil {
		return nil
	}

	raw, err := g.store.Get(ctx, scope.Key())
	if err != nil {
		g.logger.Warn("durable cache read failed",
			slog.String("key", scope.Key()),
			slog.Any("error", err))
		return nil
	}
	if raw == nil && scope.Lang == g.cfg.DefaultLang {
		raw, err = g.store.Get(ctx, scope.legacyKey())
		if err != nil {
			g.logger.Warn("durable cache legacy read failed",
				slog.String("key", scope.legacyKey()),
				slog.Any("error", err))
			return nil
		}
	}
	if raw == nil {
		return nil
	}

	var stored storedEntry
	if err := json.Unmarshal(raw, &stored); err != nil {
		g.logger.Warn("durable cache entry corrupt",
			slog.String("key", scope.Key()),
			slog.Any("error", err))
		return nil
	}
	return stored.Items
}

// writeThrough persists the fresh entry best-effort; failures are logged and
// swallowed.
func (g *Guard) writeThrough(ctx context.Context, scope Scope, items []*entity.NewsItem, now time.Time) {
	if g.store == nil {
		return
	}

	raw, err := json.Marshal(storedEntry{Items: items, CachedAt: now})
	if err != nil {
		g.logger.Warn("durable cache encode failed",
			slog.String("key", scope.Key()),
			slog.Any("error", err))
		return
	}
	if err := g.store.Set(ctx, scope.Key(), raw, g.cfg.DurableTTL); err != nil {
		g.logger.Warn("durable cache write failed",
			slog.String("key", scope.Key()),
			slog.Any("error", err))
	}
}

// sweepLocked bounds memory growth before an insert. Once the table passes
// half the cap it drops entries older than 2xTTL and breaker states whose
// cooldown already lapsed; if the table is still at the hard cap it evicts
// the globally oldest entries until the insert fits. Caller holds g.mu.
func (g *Guard) sweepLocked(now time.Time) {
	if len(g.entries) <= g.cfg.MaxScopes/2 {
		return
	}

	stale := 2 * g.cfg.TTL
	for scope, e := range g.entries {
		if now.Sub(e.fetchedAt) > stale {
			delete(g.entries, scope)
		}
	}
	for scope, b := range g.breakers {
		if !b.cooldownUntil.IsZero() && !now.Before(b.cooldownUntil) {
			delete(g.breakers, scope)
		}
	}

	for len(g.entries) >= g.cfg.MaxScopes {
		var oldest Scope
		var oldestAt time.Time
		first := true
		for scope, e := range g.entries {
			if first || e.fetchedAt.Before(oldestAt) {
				oldest, oldestAt, first = scope, e.fetchedAt, false
			}
		}
		delete(g.entries, oldest)
	}
}

// Cached returns the in-memory items for a scope without touching the
// network or the breaker. Intended for introspection and tests.
func (g *Guard) Cached(scope Scope) ([]*entity.NewsItem, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[scope]
	if !ok {
		return nil, false
	}
	return e.items, true
}

// TrackedScopes returns the number of live in-memory entries.
func (g *Guard) TrackedScopes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
