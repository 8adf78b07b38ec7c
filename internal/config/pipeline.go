// Package config loads and validates pipeline configuration from the
// environment. Invalid values fall back to defaults with a warning rather
// than aborting startup; fallbacks are surfaced through Prometheus metrics.
package config

import (
	"log/slog"
	"time"

	"threatwatch/internal/classifier/keyword"
	pkgconfig "threatwatch/internal/pkg/config"
)

// configMetrics tracks validation errors and fallbacks for the pipeline
// configuration.
var configMetrics = pkgconfig.NewConfigMetrics("pipeline")

// PipelineConfig holds the full runtime configuration of the polling
// pipeline.
type PipelineConfig struct {
	// Variant selects the keyword table set ("default" or "tech").
	Variant keyword.Variant

	// ActiveLang is the language feeds are polled in.
	ActiveLang string

	// FeedsFile is the path to the YAML feed roster.
	FeedsFile string

	// ChunkSize is how many feeds are fetched concurrently per chunk.
	ChunkSize int

	// EscalateCount is how many fresh items per feed go to the AI
	// dispatcher. Zero means "derive from variant".
	EscalateCount int

	// Cache holds the resilience guard tuning.
	Cache CacheConfig

	// Dispatch holds the AI dispatcher tuning.
	Dispatch DispatchConfig

	// Provider selects the AI classifier backend: "openai", "claude",
	// or "none".
	Provider string
}

// CacheConfig tunes the per-feed resilience guard.
type CacheConfig struct {
	TTL              time.Duration
	FailureThreshold int
	Cooldown         time.Duration
	MaxScopes        int
	DurableTTL       time.Duration
}

// DispatchConfig tunes the AI dispatcher.
type DispatchConfig struct {
	BatchSize        int
	FlushDelay       time.Duration
	WindowLimit      int
	DedupTTL         time.Duration
	RateLimitPause   time.Duration
	ServerErrorPause time.Duration
}

// escalation defaults per variant. The tech tables carry more phrases, so a
// slightly larger sample goes to the AI for a second opinion.
const (
	defaultEscalateCount = 2
	techEscalateCount    = 3
)

// LoadPipelineConfig reads the pipeline configuration from environment
// variables. It never fails: invalid values fall back to defaults with a
// warning log and a fallback metric.
func LoadPipelineConfig() *PipelineConfig {
	cfg := &PipelineConfig{
		Variant:    keyword.ParseVariant(pkgconfig.LoadEnvString("CLASSIFIER_VARIANT", "default")),
		ActiveLang: pkgconfig.LoadEnvString("ACTIVE_LANG", "en"),
		FeedsFile:  pkgconfig.LoadEnvString("FEEDS_FILE", "feeds.yaml"),
		Provider:   pkgconfig.LoadEnvString("AI_PROVIDER", "none"),

		ChunkSize: loadInt("FEED_CHUNK_SIZE", 6, func(v int) error {
			return pkgconfig.ValidateIntRange(v, 1, 32)
		}),
		EscalateCount: loadInt("ESCALATE_COUNT", 0, func(v int) error {
			return pkgconfig.ValidateIntRange(v, 0, 5)
		}),

		Cache: CacheConfig{
			TTL:      loadDuration("CACHE_TTL", 10*time.Minute),
			Cooldown: loadDuration("BREAKER_COOLDOWN", 5*time.Minute),
			FailureThreshold: loadInt("BREAKER_FAILURE_THRESHOLD", 2, func(v int) error {
				return pkgconfig.ValidateIntRange(v, 1, 10)
			}),
			MaxScopes: loadInt("CACHE_MAX_SCOPES", 100, func(v int) error {
				return pkgconfig.ValidateIntRange(v, 10, 10000)
			}),
			DurableTTL: loadDuration("CACHE_DURABLE_TTL", 24*time.Hour),
		},

		Dispatch: DispatchConfig{
			BatchSize: loadInt("DISPATCH_BATCH_SIZE", 20, func(v int) error {
				return pkgconfig.ValidateIntRange(v, 1, 100)
			}),
			FlushDelay: loadDuration("DISPATCH_FLUSH_DELAY", 500*time.Millisecond),
			WindowLimit: loadInt("DISPATCH_WINDOW_LIMIT", 30, func(v int) error {
				return pkgconfig.ValidateIntRange(v, 1, 600)
			}),
			DedupTTL:         loadDuration("DISPATCH_DEDUP_TTL", 30*time.Minute),
			RateLimitPause:   loadDuration("DISPATCH_RATE_LIMIT_PAUSE", 60*time.Second),
			ServerErrorPause: loadDuration("DISPATCH_SERVER_ERROR_PAUSE", 30*time.Second),
		},
	}

	if cfg.EscalateCount == 0 {
		if cfg.Variant == keyword.VariantTech {
			cfg.EscalateCount = techEscalateCount
		} else {
			cfg.EscalateCount = defaultEscalateCount
		}
	}

	configMetrics.RecordLoadTimestamp()
	return cfg
}

// loadInt loads a validated int, logging and counting fallbacks.
func loadInt(key string, def int, validator func(int) error) int {
	result := pkgconfig.LoadEnvInt(key, def, validator)
	recordFallback(key, result)
	return result.Value.(int)
}

// loadDuration loads a positive duration, logging and counting fallbacks.
func loadDuration(key string, def time.Duration) time.Duration {
	result := pkgconfig.LoadEnvDuration(key, def, pkgconfig.ValidatePositiveDuration)
	recordFallback(key, result)
	return result.Value.(time.Duration)
}

func recordFallback(key string, result pkgconfig.ConfigLoadResult) {
	if !result.FallbackApplied {
		return
	}
	for _, warning := range result.Warnings {
		slog.Warn("configuration fallback", slog.String("detail", warning))
	}
	configMetrics.RecordFallback(key)
	configMetrics.SetFallbackActive(true)
}
