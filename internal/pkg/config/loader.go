// Package config provides fail-open environment loading shared by the worker
// and pipeline configuration layers. Invalid values never abort startup: a
// loader falls back to its default, reports a warning, and the process runs
// on known-good settings while the fallback is surfaced through metrics.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ConfigLoadResult is the outcome of loading one environment value.
//
// Value holds the parsed value, or the default when the variable was unset or
// failed validation. Warnings carries one human-readable message per fallback
// applied. FallbackApplied distinguishes "default because unset" (false, no
// warning) from "default because invalid" (true).
//
// Value is typed by the loader that produced it:
//
//	timeout := LoadEnvDuration("POLL_TIMEOUT", 5*time.Minute, ValidatePositiveDuration).Value.(time.Duration)
type ConfigLoadResult struct {
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

// LoadEnvString returns the environment value, or the default when the
// variable is unset or empty. No validation, no fallback bookkeeping; use
// LoadEnvWithFallback when a bad value must be caught.
func LoadEnvString(envKey, defaultValue string) string {
	value := os.Getenv(envKey)
	if value == "" {
		return defaultValue
	}
	return value
}

// LoadEnvWithFallback loads a string value and validates it. An unset or
// empty variable yields the default silently; a value that fails the
// validator yields the default with a warning and FallbackApplied set.
// A nil validator accepts anything.
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) ConfigLoadResult {
	value := os.Getenv(envKey)
	if value == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	if validator != nil {
		if err := validator(value); err != nil {
			return fallbackResult(envKey, value, err, defaultValue)
		}
	}

	return ConfigLoadResult{Value: value}
}

// LoadEnvDuration loads a Go duration string ("30s", "5m", "1h30m"). Parse
// failures and validator rejections both fall back to the default with a
// warning.
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fallbackResult(envKey, raw, err, defaultValue)
	}

	if validator != nil {
		if err := validator(parsed); err != nil {
			return fallbackResult(envKey, raw, err, defaultValue)
		}
	}

	return ConfigLoadResult{Value: parsed}
}

// LoadEnvInt loads a base-10 integer. Parse failures and validator rejections
// both fall back to the default with a warning.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) ConfigLoadResult {
	raw := os.Getenv(envKey)
	if raw == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallbackResult(envKey, raw, fmt.Errorf("invalid integer format"), defaultValue)
	}

	if validator != nil {
		if err := validator(parsed); err != nil {
			return fallbackResult(envKey, raw, err, defaultValue)
		}
	}

	return ConfigLoadResult{Value: parsed}
}

// fallbackResult builds the default-with-warning result shared by all
// loaders. The warning names the variable, the rejected value, and the
// default it was replaced with, so operators can fix the environment from the
// log line alone.
func fallbackResult(envKey, rawValue string, cause error, defaultValue interface{}) ConfigLoadResult {
	warning := fmt.Sprintf("Invalid %s='%s': %v, falling back to default '%v'",
		envKey, rawValue, cause, defaultValue)
	return ConfigLoadResult{
		Value:           defaultValue,
		Warnings:        []string{warning},
		FallbackApplied: true,
	}
}
