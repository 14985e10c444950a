package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome classifies how a request was answered.
type Outcome string

const (
	OutcomeHit      Outcome = "hit"
	OutcomeMiss     Outcome = "miss"
	OutcomeUncached Outcome = "uncached"
	OutcomeError    Outcome = "error"
)

// Metrics records gateway metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordRequest records one dispatched request and its total duration.
	RecordRequest(ctx context.Context, service string, outcome Outcome, duration time.Duration)

	// RecordUpstream records one upstream round trip. status is 0 when no
	// response was received.
	RecordUpstream(ctx context.Context, service string, status int, duration time.Duration)

	// RecordStoreError counts a failed cache store operation ("get" or "set").
	RecordStoreError(ctx context.Context, op string)

	// RecordUsageDropped counts a usage event dropped on queue overflow.
	RecordUsageDropped(ctx context.Context)
}

type metricsImpl struct {
	requests     metric.Int64Counter
	requestHist  metric.Float64Histogram
	upstreamHist metric.Float64Histogram
	storeErrors  metric.Int64Counter
	usageDropped metric.Int64Counter
}

// NewMetrics creates the gateway instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	requests, err := meter.Int64Counter(
		"graphcache.requests.total",
		metric.WithDescription("Total number of dispatched GraphQL requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	requestHist, err := meter.Float64Histogram(
		"graphcache.request.duration_ms",
		metric.WithDescription("Request dispatch duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	upstreamHist, err := meter.Float64Histogram(
		"graphcache.upstream.duration_ms",
		metric.WithDescription("Upstream round trip duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	storeErrors, err := meter.Int64Counter(
		"graphcache.store.errors",
		metric.WithDescription("Failed cache store operations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	usageDropped, err := meter.Int64Counter(
		"graphcache.usage.dropped",
		metric.WithDescription("Usage events dropped because the queue was full"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		requests:     requests,
		requestHist:  requestHist,
		upstreamHist: upstreamHist,
		storeErrors:  storeErrors,
		usageDropped: usageDropped,
	}, nil
}

func (m *metricsImpl) RecordRequest(ctx context.Context, service string, outcome Outcome, duration time.Duration) {
	m.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("outcome", string(outcome)),
	))
	m.requestHist.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.String("service", service),
	))
}

func (m *metricsImpl) RecordUpstream(ctx context.Context, service string, status int, duration time.Duration) {
	m.upstreamHist.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.String("service", service),
		attribute.Int("status", status),
	))
}

func (m *metricsImpl) RecordStoreError(ctx context.Context, op string) {
	m.storeErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *metricsImpl) RecordUsageDropped(ctx context.Context) {
	m.usageDropped.Add(ctx, 1)
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics {
	return nopMetrics{}
}

type nopMetrics struct{}

func (nopMetrics) RecordRequest(context.Context, string, Outcome, time.Duration) {}
func (nopMetrics) RecordUpstream(context.Context, string, int, time.Duration)    {}
func (nopMetrics) RecordStoreError(context.Context, string)                      {}
func (nopMetrics) RecordUsageDropped(context.Context)                            {}
