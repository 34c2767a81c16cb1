package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const tracerName = "knowledgebeast"

// otelSpan adapts an OpenTelemetry span to the Span interface.
type otelSpan struct {
	span oteltrace.Span
}

func (s *otelSpan) End() { s.span.End() }

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (s *otelSpan) RecordError(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// OtelTracer wraps an OpenTelemetry TracerProvider.
type OtelTracer struct {
	tracer oteltrace.Tracer
}

// NewOtelTracer builds a Tracer from a fresh in-process TracerProvider.
// A real deployment would instead configure an OTLP exporter on the
// provider before constructing this; that wiring is surface-layer
// concern, out of core scope.
func NewOtelTracer() *OtelTracer {
	provider := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(provider)
	return &OtelTracer{tracer: provider.Tracer(tracerName)}
}

func (t *OtelTracer) Start(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

// noopSpan satisfies Span without recording anything.
type noopSpan struct{}

func (noopSpan) End()                            {}
func (noopSpan) SetAttribute(string, interface{}) {}
func (noopSpan) RecordError(error)               {}

// NoopTracer never records a span; used by components constructed without
// an observability stack.
type NoopTracer struct{}

func NewNoopTracer() Tracer { return &NoopTracer{} }

func (NoopTracer) Start(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}
