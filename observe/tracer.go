package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// RequestMeta describes one dispatched request for telemetry purposes.
// The route identifier is omitted since it may carry an API key.
type RequestMeta struct {
	Service       string // service type, e.g. "gateway"
	Name          string // subgraph or deployment name
	OperationName string // optional
}

// SpanName returns the deterministic span name for this request.
// Format: graphcache.dispatch.<service>
func (m RequestMeta) SpanName() string {
	if m.Service == "" {
		return "graphcache.dispatch"
	}
	return "graphcache.dispatch." + m.Service
}

func (m RequestMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("graphcache.service", m.Service),
		attribute.String("graphcache.name", m.Name),
	}
	if m.OperationName != "" {
		attrs = append(attrs, attribute.String("graphql.operation.name", m.OperationName))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with request span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a dispatched request.
	StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording the outcome and any error.
	EndSpan(span trace.Span, outcome Outcome, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		t = tracenoop.NewTracerProvider().Tracer("noop")
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(meta.attributes()...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, outcome Outcome, err error) {
	span.SetAttributes(attribute.String("graphcache.outcome", string(outcome)))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
