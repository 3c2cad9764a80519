// Package telemetry configures OpenTelemetry tracing for crawl runs.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/gohgeo-lang/back-auto-review-insight"

// TracingConfig selects the service identity and sampling.
type TracingConfig struct {
	ServiceName string
	// SampleRatio applies to root spans; children follow their parent.
	SampleRatio float64
}

// InitTracing installs the global tracer provider and the W3C trace-context
// propagator used when report requests are published. The returned function
// flushes and stops the provider.
func InitTracing(ctx context.Context, cfg TracingConfig) (func(context.Context) error, error) {
	if cfg.SampleRatio < 0 || cfg.SampleRatio > 1 {
		return nil, fmt.Errorf("sample ratio %v outside [0, 1]", cfg.SampleRatio)
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("build tracing resource: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp.Shutdown, nil
}

// StartCrawl opens the span covering one crawl of placeID.
func StartCrawl(ctx context.Context, placeID, userID string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentation).Start(ctx, "crawl",
		trace.WithAttributes(
			attribute.String("place_id", placeID),
			attribute.String("user_id", userID),
		),
	)
}

// EndCrawl records the run outcome on span and ends it.
func EndCrawl(span trace.Span, outcome string, added, updated int) {
	span.SetAttributes(
		attribute.String("outcome", outcome),
		attribute.Int("reviews.added", added),
		attribute.Int("reviews.updated", updated),
	)
	if outcome == "failed" {
		span.SetStatus(codes.Error, "crawl failed")
	}
	span.End()
}
