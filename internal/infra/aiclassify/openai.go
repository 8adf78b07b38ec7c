package aiclassify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"threatwatch/internal/domain/entity"
	"threatwatch/internal/observability/metrics"
	"threatwatch/internal/resilience/circuitbreaker"
)

// OpenAIConfig holds configuration parameters for the OpenAI classifier.
type OpenAIConfig struct {
	// Model is the OpenAI API model identifier.
	Model string

	// MaxTokens caps the API response size. Classification replies are a
	// single small JSON object, so this stays low.
	MaxTokens int

	// Timeout bounds a single classification API call.
	Timeout time.Duration

	// RequestsPerMinute is the client-side rate cap applied before calls.
	RequestsPerMinute int
}

// DefaultOpenAIConfig returns the standard OpenAI classifier settings.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		Model:             openai.GPT4oMini,
		MaxTokens:         128,
		Timeout:           30 * time.Second,
		RequestsPerMinute: 60,
	}
}

// OpenAI implements Provider using OpenAI's chat completion API.
type OpenAI struct {
	client         *openai.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	limiter        *rate.Limiter
	config         OpenAIConfig
}

// NewOpenAI creates an OpenAI classifier with the given API key.
func NewOpenAI(apiKey string, config OpenAIConfig) *OpenAI {
	slog.Info("initialized openai classifier",
		slog.String("model", config.Model),
		slog.Int("requests_per_minute", config.RequestsPerMinute))

	return &OpenAI{
		client:         openai.NewClient(apiKey),
		circuitBreaker: circuitbreaker.New(circuitbreaker.OpenAIAPIConfig()),
		limiter:        rate.NewLimiter(rate.Limit(float64(config.RequestsPerMinute)/60.0), 1),
		config:         config,
	}
}

// Name implements Provider.
func (o *OpenAI) Name() string { return "openai" }

// Classify implements Provider. The call is rate limited client-side and
// executed through a circuit breaker.
func (o *OpenAI) Classify(ctx context.Context, req Request) (entity.ThreatClassification, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return entity.ThreatClassification{}, fmt.Errorf("openai rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, o.config.Timeout)
	defer cancel()

	cbResult, err := o.circuitBreaker.Execute(func() (interface{}, error) {
		return o.doClassify(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			slog.Warn("openai api circuit breaker open, request rejected",
				slog.String("service", "openai-api"),
				slog.String("state", o.circuitBreaker.State().String()))
			return entity.ThreatClassification{}, fmt.Errorf("openai api unavailable: %w", ErrServerError)
		}
		return entity.ThreatClassification{}, err
	}

	return cbResult.(entity.ThreatClassification), nil
}

// doClassify performs the actual API call without circuit breaker.
func (o *OpenAI) doClassify(ctx context.Context, req Request) (entity.ThreatClassification, error) {
	start := time.Now()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.config.Model,
		MaxTokens: o.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{{
			Role:    openai.ChatMessageRoleUser,
			Content: buildPrompt(req),
		}},
	})

	duration := time.Since(start)

	if err != nil {
		metrics.RecordClassifyRPC("error", duration)
		slog.ErrorContext(ctx, "openai classification failed",
			slog.String("title", req.Title),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()))
		return entity.ThreatClassification{}, classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		metrics.RecordClassifyRPC("error", duration)
		return entity.ThreatClassification{}, fmt.Errorf("openai api returned empty response: %w", ErrServerError)
	}

	classification, err := parseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		metrics.RecordClassifyRPC("unmappable", duration)
		slog.WarnContext(ctx, "openai reply unmappable",
			slog.String("title", req.Title),
			slog.String("reply", resp.Choices[0].Message.Content))
		return entity.ThreatClassification{}, err
	}

	metrics.RecordClassifyRPC("success", duration)
	slog.InfoContext(ctx, "openai classification completed",
		slog.String("title", req.Title),
		slog.String("level", string(classification.Level)),
		slog.Float64("confidence", classification.Confidence),
		slog.Duration("duration", duration))

	return classification, nil
}

// classifyOpenAIError maps API failures onto the dispatcher sentinel errors.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("openai api: %v: %w", err, ErrRateLimited)
		case apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("openai api: %v: %w", err, ErrServerError)
		}
	}
	return fmt.Errorf("openai api error: %w", err)
}
