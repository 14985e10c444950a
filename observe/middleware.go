package observe

import (
	"context"
	"time"
)

// DispatchFunc handles one request and reports how it was answered.
type DispatchFunc func(ctx context.Context) (Outcome, error)

// Middleware wraps request dispatch with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Observe is safe for concurrent use.
//   - Context: the span context is propagated into fn.
//   - Errors: errors from fn are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components are replaced by
// no-op implementations.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewTracer(nil)
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Observe runs fn inside a request span, then records request metrics and
// logs the completion.
func (m *Middleware) Observe(ctx context.Context, meta RequestMeta, fn DispatchFunc) error {
	ctx, span := m.tracer.StartSpan(ctx, meta)
	start := time.Now()

	outcome, err := fn(ctx)
	if err != nil {
		outcome = OutcomeError
	}
	duration := time.Since(start)

	m.tracer.EndSpan(span, outcome, err)
	m.metrics.RecordRequest(ctx, meta.Service, outcome, duration)

	fields := []Field{
		F("type", meta.Service),
		F("name", meta.Name),
		F("outcome", string(outcome)),
		F("duration_ms", float64(duration.Milliseconds())),
	}
	if meta.OperationName != "" {
		fields = append(fields, F("operationName", meta.OperationName))
	}
	if err != nil {
		fields = append(fields, F("error", err))
		m.logger.Error(ctx, "request failed", fields...)
	} else {
		m.logger.Debug(ctx, "request completed", fields...)
	}

	return err
}

// Metrics returns the metrics recorder used by the middleware.
func (m *Middleware) Metrics() Metrics {
	return m.metrics
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
