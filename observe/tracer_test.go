package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestRequestMeta_SpanName(t *testing.T) {
	tests := []struct {
		meta RequestMeta
		want string
	}{
		{RequestMeta{Service: "gateway", Name: "sub"}, "graphcache.dispatch.gateway"},
		{RequestMeta{}, "graphcache.dispatch"},
	}
	for _, tt := range tests {
		if got := tt.meta.SpanName(); got != tt.want {
			t.Errorf("SpanName() = %q, want %q", got, tt.want)
		}
	}
}

func attrValue(attrs []attribute.KeyValue, key string) (string, bool) {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value.Emit(), true
		}
	}
	return "", false
}

func TestTracer_SpanAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tr := NewTracer(tp.Tracer("test"))

	_, span := tr.StartSpan(context.Background(), RequestMeta{
		Service:       "gateway",
		Name:          "subgraphXYZ",
		OperationName: "Tokens",
	})
	tr.EndSpan(span, OutcomeHit, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	s := spans[0]
	if s.Name() != "graphcache.dispatch.gateway" {
		t.Errorf("span name = %q", s.Name())
	}
	attrs := s.Attributes()
	for key, want := range map[string]string{
		"graphcache.service":     "gateway",
		"graphcache.name":        "subgraphXYZ",
		"graphql.operation.name": "Tokens",
		"graphcache.outcome":     "hit",
	} {
		if got, ok := attrValue(attrs, key); !ok || got != want {
			t.Errorf("attribute %s = %q, want %q", key, got, want)
		}
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", s.Status().Code)
	}
}

func TestTracer_RecordsError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tr := NewTracer(tp.Tracer("test"))

	_, span := tr.StartSpan(context.Background(), RequestMeta{Service: "hosted"})
	tr.EndSpan(span, OutcomeError, errors.New("upstream down"))

	s := recorder.Ended()[0]
	if s.Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", s.Status().Code)
	}
	if s.Status().Description != "upstream down" {
		t.Errorf("description = %q", s.Status().Description)
	}
	if len(s.Events()) == 0 {
		t.Error("expected an exception event")
	}
}

func TestNewTracer_NilUsesNoop(t *testing.T) {
	tr := NewTracer(nil)
	ctx, span := tr.StartSpan(context.Background(), RequestMeta{Service: "studio"})
	if ctx == nil || span == nil {
		t.Fatal("noop tracer returned nil")
	}
	tr.EndSpan(span, OutcomeMiss, nil)
}
