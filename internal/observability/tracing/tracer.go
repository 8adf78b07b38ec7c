// Package tracing provides OpenTelemetry tracing for the pipeline.
// Spans are created around feed fetches, batch polls, and dispatch flushes.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the global tracer instance for the threatwatch pipeline.
var tracer = otel.Tracer("threatwatch")

// GetTracer returns the global tracer for creating spans.
// This tracer can be used throughout the application to create new spans.
//
// Example usage:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "feed.fetch")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}

// Init installs an SDK tracer provider as the global provider and returns a
// shutdown function for graceful teardown. Exporters are attached by the
// deployment (OTLP via environment); with none configured spans are dropped,
// which keeps local runs free of collector requirements.
func Init() func(context.Context) error {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	tracer = tp.Tracer("threatwatch")
	return tp.Shutdown
}
