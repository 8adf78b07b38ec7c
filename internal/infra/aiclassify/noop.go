package aiclassify

import (
	"context"

	"threatwatch/internal/domain/entity"
)

// NoOp is a classifier that echoes the default classification. It is useful
// for development and testing when no API key is configured.
type NoOp struct{}

// NewNoOp creates a new NoOp classifier.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Name implements Provider.
func (n *NoOp) Name() string { return "noop" }

// Classify returns the default classification with an llm origin so callers
// exercise the same merge path as with a real provider.
func (n *NoOp) Classify(_ context.Context, _ Request) (entity.ThreatClassification, error) {
	c := entity.DefaultClassification()
	c.Origin = entity.OriginLLM
	return c, nil
}
