package aiclassify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"threatwatch/internal/domain/entity"
	"threatwatch/internal/observability/metrics"
	"threatwatch/internal/resilience/circuitbreaker"
)

// ClaudeConfig holds configuration parameters for the Claude classifier.
type ClaudeConfig struct {
	// Model is the Claude API model identifier.
	Model string

	// MaxTokens caps the API response size.
	MaxTokens int

	// Timeout bounds a single classification API call.
	Timeout time.Duration

	// RequestsPerMinute is the client-side rate cap applied before calls.
	RequestsPerMinute int
}

// DefaultClaudeConfig returns the standard Claude classifier settings.
func DefaultClaudeConfig() ClaudeConfig {
	return ClaudeConfig{
		Model:             string(anthropic.ModelClaudeSonnet4_5_20250929),
		MaxTokens:         128,
		Timeout:           30 * time.Second,
		RequestsPerMinute: 50,
	}
}

// Claude implements Provider using Anthropic's messages API.
type Claude struct {
	client         anthropic.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	limiter        *rate.Limiter
	config         ClaudeConfig
}

// NewClaude creates a Claude classifier with the given API key.
func NewClaude(apiKey string, config ClaudeConfig) *Claude {
	slog.Info("initialized claude classifier",
		slog.String("model", config.Model),
		slog.Int("requests_per_minute", config.RequestsPerMinute))

	return &Claude{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		circuitBreaker: circuitbreaker.New(circuitbreaker.ClaudeAPIConfig()),
		limiter:        rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60.0), 1),
		config:         config,
	}
}

// Name implements Provider.
func (c *Claude) Name() string { return "claude" }

// Classify implements Provider. The call is rate limited client-side and
// executed through a circuit breaker.
func (c *Claude) Classify(ctx context.Context, req Request) (entity.ThreatClassification, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return entity.ThreatClassification{}, fmt.Errorf("claude rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
		return c.doClassify(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			slog.Warn("claude api circuit breaker open, request rejected",
				slog.String("service", "claude-api"),
				slog.String("state", c.circuitBreaker.State().String()))
			return entity.ThreatClassification{}, fmt.Errorf("claude api unavailable: %w", ErrServerError)
		}
		return entity.ThreatClassification{}, err
	}

	return cbResult.(entity.ThreatClassification), nil
}

// doClassify performs the actual API call without circuit breaker.
func (c *Claude) doClassify(ctx context.Context, req Request) (entity.ThreatClassification, error) {
	requestID := uuid.New().String()
	start := time.Now()

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(buildPrompt(req)),
			),
		},
	})

	duration := time.Since(start)

	if err != nil {
		metrics.RecordClassifyRPC("error", duration)
		slog.ErrorContext(ctx, "claude classification failed",
			slog.String("request_id", requestID),
			slog.String("title", req.Title),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return entity.ThreatClassification{}, classifyClaudeError(err)
	}

	if len(message.Content) == 0 {
		metrics.RecordClassifyRPC("error", duration)
		return entity.ThreatClassification{}, fmt.Errorf("claude api returned empty response: %w", ErrServerError)
	}

	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		metrics.RecordClassifyRPC("unmappable", duration)
		return entity.ThreatClassification{}, fmt.Errorf("claude api returned unexpected response type: %w", ErrUnmappable)
	}

	classification, err := parseResponse(textBlock.Text)
	if err != nil {
		metrics.RecordClassifyRPC("unmappable", duration)
		slog.WarnContext(ctx, "claude reply unmappable",
			slog.String("request_id", requestID),
			slog.String("title", req.Title),
			slog.String("reply", textBlock.Text))
		return entity.ThreatClassification{}, err
	}

	metrics.RecordClassifyRPC("success", duration)
	slog.InfoContext(ctx, "claude classification completed",
		slog.String("request_id", requestID),
		slog.String("title", req.Title),
		slog.String("level", string(classification.Level)),
		slog.Float64("confidence", classification.Confidence),
		slog.Duration("duration", duration))

	return classification, nil
}

// classifyClaudeError maps API failures onto the dispatcher sentinel errors.
func classifyClaudeError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("claude api: %v: %w", err, ErrRateLimited)
		case apiErr.StatusCode >= 500:
			return fmt.Errorf("claude api: %v: %w", err, ErrServerError)
		}
	}
	return fmt.Errorf("claude api error: %w", err)
}
