// Package worker provides the scheduling shell around the polling pipeline:
// cron configuration, job metrics, and the health endpoint.
package worker

import (
	"fmt"
	"log/slog"
	"time"

	"threatwatch/internal/pkg/config"
)

// WorkerConfig controls the cron schedule and operational parameters of the
// poll worker. All fields have defaults and validation rules, so the worker
// can start even with a broken environment.
type WorkerConfig struct {
	// CronSchedule drives the poll loop. Five-field cron expression.
	// Default: every 10 minutes.
	CronSchedule string

	// Timezone is the IANA timezone the schedule is evaluated in.
	Timezone string

	// PollTimeout bounds one full poll across all feeds.
	PollTimeout time.Duration

	// HealthPort serves the liveness and readiness probes.
	HealthPort int

	// MetricsPort serves the Prometheus endpoint.
	MetricsPort int
}

// DefaultConfig returns production defaults: a ten-minute poll cadence in
// UTC with a timeout well under the cadence so runs never overlap.
func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		CronSchedule: "*/10 * * * *",
		Timezone:     "UTC",
		PollTimeout:  5 * time.Minute,
		HealthPort:   9091,
		MetricsPort:  9090,
	}
}

// Validate checks the configuration, aggregating all field errors.
func (c *WorkerConfig) Validate() error {
	var errors []error

	if err := config.ValidateCronSchedule(c.CronSchedule); err != nil {
		errors = append(errors, fmt.Errorf("cron schedule: %w", err))
	}
	if err := config.ValidateTimezone(c.Timezone); err != nil {
		errors = append(errors, fmt.Errorf("timezone: %w", err))
	}
	if err := config.ValidatePositiveDuration(c.PollTimeout); err != nil {
		errors = append(errors, fmt.Errorf("poll timeout: %w", err))
	}
	if err := config.ValidateIntRange(c.HealthPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("health port: %w", err))
	}
	if err := config.ValidateIntRange(c.MetricsPort, 1024, 65535); err != nil {
		errors = append(errors, fmt.Errorf("metrics port: %w", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("validation failed: %v", errors)
	}
	return nil
}

// LoadConfigFromEnv loads worker configuration from environment variables.
// The strategy is fail-open: an invalid value falls back to its default with
// a warning log and a fallback metric, and the function never errors.
//
// Environment variables:
//   - POLL_SCHEDULE: cron expression (default "*/10 * * * *")
//   - WORKER_TIMEZONE: IANA timezone (default "UTC")
//   - POLL_TIMEOUT: duration, 30s to 1h (default 5m)
//   - WORKER_HEALTH_PORT: 1024-65535 (default 9091)
//   - METRICS_PORT: 1024-65535 (default 9090)
func LoadConfigFromEnv(logger *slog.Logger, metrics *WorkerMetrics) *WorkerConfig {
	cfg := DefaultConfig()
	fallbackApplied := false

	apply := func(field string, result config.ConfigLoadResult) config.ConfigLoadResult {
		if result.FallbackApplied {
			fallbackApplied = true
			metrics.RecordValidationError(field)
			metrics.RecordFallback(field)
			for _, warning := range result.Warnings {
				logger.Warn("configuration fallback applied",
					slog.String("field", field),
					slog.String("warning", warning))
			}
		}
		return result
	}

	cfg.CronSchedule = apply("poll_schedule",
		config.LoadEnvWithFallback("POLL_SCHEDULE", cfg.CronSchedule, config.ValidateCronSchedule)).Value.(string)

	cfg.Timezone = apply("timezone",
		config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, config.ValidateTimezone)).Value.(string)

	cfg.PollTimeout = apply("poll_timeout",
		config.LoadEnvDuration("POLL_TIMEOUT", cfg.PollTimeout, func(d time.Duration) error {
			return config.ValidateDuration(d, 30*time.Second, time.Hour)
		})).Value.(time.Duration)

	cfg.HealthPort = apply("health_port",
		config.LoadEnvInt("WORKER_HEALTH_PORT", cfg.HealthPort, func(v int) error {
			return config.ValidateIntRange(v, 1024, 65535)
		})).Value.(int)

	cfg.MetricsPort = apply("metrics_port",
		config.LoadEnvInt("METRICS_PORT", cfg.MetricsPort, func(v int) error {
			return config.ValidateIntRange(v, 1024, 65535)
		})).Value.(int)

	metrics.SetFallbackActive(fallbackApplied)
	metrics.RecordLoadTimestamp()

	return &cfg
}
