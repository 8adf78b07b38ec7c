package worker

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.CronSchedule != "*/10 * * * *" {
		t.Errorf("Expected CronSchedule '*/10 * * * *', got '%s'", config.CronSchedule)
	}
	if config.Timezone != "UTC" {
		t.Errorf("Expected Timezone 'UTC', got '%s'", config.Timezone)
	}
	if config.PollTimeout != 5*time.Minute {
		t.Errorf("Expected PollTimeout 5m, got %v", config.PollTimeout)
	}
	if config.HealthPort != 9091 {
		t.Errorf("Expected HealthPort 9091, got %d", config.HealthPort)
	}
	if config.MetricsPort != 9090 {
		t.Errorf("Expected MetricsPort 9090, got %d", config.MetricsPort)
	}
}

func TestWorkerConfig_Validate_ValidConfig(t *testing.T) {
	config := DefaultConfig()

	if err := config.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got error: %v", err)
	}
}

func TestWorkerConfig_Validate_InvalidCronSchedule(t *testing.T) {
	config := DefaultConfig()
	config.CronSchedule = "invalid cron"

	if err := config.Validate(); err == nil {
		t.Error("Expected validation error for invalid cron schedule")
	}
}

func TestWorkerConfig_Validate_EmptyCronSchedule(t *testing.T) {
	config := DefaultConfig()
	config.CronSchedule = ""

	if err := config.Validate(); err == nil {
		t.Error("Expected validation error for empty cron schedule")
	}
}

func TestWorkerConfig_Validate_InvalidTimezone(t *testing.T) {
	config := DefaultConfig()
	config.Timezone = "Invalid/Timezone"

	if err := config.Validate(); err == nil {
		t.Error("Expected validation error for invalid timezone")
	}
}

func TestWorkerConfig_Validate_PollTimeoutBoundary(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		valid    bool
	}{
		{"Zero", 0, false},
		{"Negative", -1 * time.Minute, false},
		{"1 second", 1 * time.Second, true},
		{"5 minutes", 5 * time.Minute, true},
		{"1 hour", 1 * time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.PollTimeout = tt.duration

			err := config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid timeout %v, got error: %v", tt.duration, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected validation error for timeout %v", tt.duration)
			}
		})
	}
}

func TestWorkerConfig_Validate_PortBoundary(t *testing.T) {
	tests := []struct {
		name  string
		port  int
		valid bool
	}{
		{"Min valid (1024)", 1024, true},
		{"Max valid (65535)", 65535, true},
		{"Below min (1023)", 1023, false},
		{"Above max (65536)", 65536, false},
		{"Zero", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			config.HealthPort = tt.port

			err := config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid port %d, got error: %v", tt.port, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected validation error for port %d", tt.port)
			}
		})
	}
}

func TestWorkerConfig_Validate_MultipleErrors(t *testing.T) {
	config := WorkerConfig{
		CronSchedule: "invalid",
		Timezone:     "Invalid/Zone",
		PollTimeout:  0,
		HealthPort:   100,
		MetricsPort:  100,
	}

	err := config.Validate()
	if err == nil {
		t.Fatal("Expected validation errors for multiple invalid fields")
	}
	if err.Error() == "" {
		t.Error("Error message should not be empty")
	}
}

// globalTestMetrics is a shared metrics instance for tests to avoid
// duplicate Prometheus registration errors.
var globalTestMetrics = NewWorkerMetrics()

func TestLoadConfigFromEnv_AllEnvVarsValid(t *testing.T) {
	t.Setenv("POLL_SCHEDULE", "*/5 * * * *")
	t.Setenv("WORKER_TIMEZONE", "Asia/Tokyo")
	t.Setenv("POLL_TIMEOUT", "2m")
	t.Setenv("WORKER_HEALTH_PORT", "8081")
	t.Setenv("METRICS_PORT", "8080")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	config := LoadConfigFromEnv(logger, globalTestMetrics)

	if config.CronSchedule != "*/5 * * * *" {
		t.Errorf("Expected CronSchedule '*/5 * * * *', got '%s'", config.CronSchedule)
	}
	if config.Timezone != "Asia/Tokyo" {
		t.Errorf("Expected Timezone 'Asia/Tokyo', got '%s'", config.Timezone)
	}
	if config.PollTimeout != 2*time.Minute {
		t.Errorf("Expected PollTimeout 2m, got %v", config.PollTimeout)
	}
	if config.HealthPort != 8081 {
		t.Errorf("Expected HealthPort 8081, got %d", config.HealthPort)
	}
	if config.MetricsPort != 8080 {
		t.Errorf("Expected MetricsPort 8080, got %d", config.MetricsPort)
	}

	if buf.Len() > 0 {
		t.Errorf("Expected no warnings, got: %s", buf.String())
	}
}

func TestLoadConfigFromEnv_MissingEnvVars(t *testing.T) {
	t.Setenv("POLL_SCHEDULE", "")
	t.Setenv("WORKER_TIMEZONE", "")
	t.Setenv("POLL_TIMEOUT", "")
	t.Setenv("WORKER_HEALTH_PORT", "")
	t.Setenv("METRICS_PORT", "")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	config := LoadConfigFromEnv(logger, globalTestMetrics)

	defaults := DefaultConfig()
	if config.CronSchedule != defaults.CronSchedule {
		t.Errorf("Expected default CronSchedule, got '%s'", config.CronSchedule)
	}
	if config.Timezone != defaults.Timezone {
		t.Errorf("Expected default Timezone, got '%s'", config.Timezone)
	}
	if config.PollTimeout != defaults.PollTimeout {
		t.Errorf("Expected default PollTimeout, got %v", config.PollTimeout)
	}
	if config.HealthPort != defaults.HealthPort {
		t.Errorf("Expected default HealthPort, got %d", config.HealthPort)
	}
}

func TestLoadConfigFromEnv_InvalidCronSchedule(t *testing.T) {
	t.Setenv("POLL_SCHEDULE", "invalid cron")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	config := LoadConfigFromEnv(logger, globalTestMetrics)

	if config.CronSchedule != DefaultConfig().CronSchedule {
		t.Errorf("Expected default CronSchedule, got '%s'", config.CronSchedule)
	}

	logOutput := buf.String()
	if !strings.Contains(logOutput, "configuration fallback applied") {
		t.Error("Expected fallback warning in logs")
	}
	if !strings.Contains(logOutput, "poll_schedule") {
		t.Error("Expected poll_schedule field in warning")
	}
}

func TestLoadConfigFromEnv_InvalidPollTimeout(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"Zero", "0"},
		{"Negative", "-1s"},
		{"Below minimum", "5s"},
		{"Above maximum", "2h"},
		{"Invalid format", "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("POLL_TIMEOUT", tt.value)

			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			config := LoadConfigFromEnv(logger, globalTestMetrics)

			if config.PollTimeout != DefaultConfig().PollTimeout {
				t.Errorf("Expected default PollTimeout, got %v", config.PollTimeout)
			}
			if !strings.Contains(buf.String(), "configuration fallback applied") {
				t.Error("Expected fallback warning in logs")
			}
		})
	}
}

func TestLoadConfigFromEnv_InvalidHealthPort(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"Too low", "1023"},
		{"Too high", "65536"},
		{"Invalid format", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("WORKER_HEALTH_PORT", tt.value)

			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			config := LoadConfigFromEnv(logger, globalTestMetrics)

			if config.HealthPort != DefaultConfig().HealthPort {
				t.Errorf("Expected default HealthPort, got %d", config.HealthPort)
			}
			if !strings.Contains(buf.String(), "configuration fallback applied") {
				t.Error("Expected fallback warning in logs")
			}
		})
	}
}

func TestLoadConfigFromEnv_PartiallyValid(t *testing.T) {
	t.Setenv("POLL_SCHEDULE", "*/15 * * * *")
	t.Setenv("WORKER_TIMEZONE", "Invalid/Zone")
	t.Setenv("POLL_TIMEOUT", "90s")
	t.Setenv("WORKER_HEALTH_PORT", "abc")

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	config := LoadConfigFromEnv(logger, globalTestMetrics)

	if config.CronSchedule != "*/15 * * * *" {
		t.Errorf("Expected CronSchedule '*/15 * * * *', got '%s'", config.CronSchedule)
	}
	if config.PollTimeout != 90*time.Second {
		t.Errorf("Expected PollTimeout 90s, got %v", config.PollTimeout)
	}

	if config.Timezone != DefaultConfig().Timezone {
		t.Errorf("Expected default Timezone, got '%s'", config.Timezone)
	}
	if config.HealthPort != DefaultConfig().HealthPort {
		t.Errorf("Expected default HealthPort, got %d", config.HealthPort)
	}

	warningCount := strings.Count(buf.String(), "configuration fallback applied")
	if warningCount != 2 {
		t.Errorf("Expected 2 warnings, got %d", warningCount)
	}
}
