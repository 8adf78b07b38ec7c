// Package aiclassify provides remote AI classification of news headlines.
// It includes adapters for Claude (Anthropic) and OpenAI APIs with circuit
// breaker protection, client-side rate limiting, and comprehensive
// observability through structured logging and Prometheus metrics.
package aiclassify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"threatwatch/internal/domain/entity"
)

// Request carries the headline fields sent for remote classification.
type Request struct {
	Title       string
	Description string
	Source      string
	Country     string
}

// Provider classifies a single headline via a remote model.
type Provider interface {
	// Classify returns the model's threat assessment for the request.
	// Errors should be inspected with RateLimited and ServerError so the
	// caller can apply the appropriate backoff.
	Classify(ctx context.Context, req Request) (entity.ThreatClassification, error)

	// Name identifies the provider for logging and metrics.
	Name() string
}

// Sentinel errors for dispatcher backoff decisions.
var (
	// ErrRateLimited indicates the provider rejected the call with a
	// rate-limit response (HTTP 429 or equivalent).
	ErrRateLimited = errors.New("classifier provider rate limited")

	// ErrServerError indicates the provider failed with a 5xx response.
	ErrServerError = errors.New("classifier provider server error")

	// ErrUnmappable indicates the model responded but its output could
	// not be mapped to a known threat level.
	ErrUnmappable = errors.New("classifier response unmappable")
)

// RateLimited reports whether the error chain contains a rate-limit rejection.
func RateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// ServerError reports whether the error chain contains a provider 5xx failure.
func ServerError(err error) bool {
	return errors.Is(err, ErrServerError)
}

// wireResponse is the JSON shape the prompt instructs the model to emit.
type wireResponse struct {
	Level      string  `json:"level"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// buildPrompt constructs the classification prompt shared by all providers.
func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Classify the severity of this news headline for a global threat monitor.\n")
	b.WriteString("Respond with only a JSON object: ")
	b.WriteString(`{"level": "critical|high|medium|low|info", "category": "conflict|military|cyber|economic|health|infrastructure|tech|protest|diplomatic|environmental|crime|terrorism|general", "confidence": 0.0-1.0}`)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Title: %s\n", req.Title)
	if req.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", req.Description)
	}
	if req.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n", req.Source)
	}
	if req.Country != "" {
		fmt.Fprintf(&b, "Country: %s\n", req.Country)
	}
	return b.String()
}

// parseResponse decodes a model reply into a classification.
// Models sometimes wrap JSON in markdown fences or prose, so the parser
// extracts the first balanced JSON object before decoding.
func parseResponse(raw string) (entity.ThreatClassification, error) {
	body := extractJSON(raw)
	if body == "" {
		return entity.ThreatClassification{}, fmt.Errorf("no JSON object in reply: %w", ErrUnmappable)
	}

	var wire wireResponse
	if err := json.Unmarshal([]byte(body), &wire); err != nil {
		return entity.ThreatClassification{}, fmt.Errorf("decode reply: %v: %w", err, ErrUnmappable)
	}

	level, err := entity.ParseThreatLevel(wire.Level)
	if err != nil {
		return entity.ThreatClassification{}, fmt.Errorf("level %q: %w", wire.Level, ErrUnmappable)
	}

	confidence := wire.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 0.5
	}

	return entity.ThreatClassification{
		Level:      level,
		Category:   entity.ParseThreatCategory(wire.Category),
		Confidence: confidence,
		Origin:     entity.OriginLLM,
	}, nil
}

// extractJSON returns the first top-level {...} span in s, or "".
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
