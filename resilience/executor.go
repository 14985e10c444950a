package resilience

import (
	"context"
	"time"
)

// Executor composes the resilience patterns guarding an upstream call.
type Executor struct {
	breakers    *BreakerGroup
	bulkhead    *Bulkhead
	rateLimiter *RateLimiter
	timeout     time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor. Without options it simply
// runs the operation.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithBreakers adds per-key circuit breakers.
func WithBreakers(g *BreakerGroup) ExecutorOption {
	return func(e *Executor) {
		e.breakers = g
	}
}

// WithBulkhead adds a concurrency cap shared by all keys.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) {
		e.bulkhead = b
	}
}

// WithRateLimiter adds a rate limit shared by all keys.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) {
		e.rateLimiter = rl
	}
}

// WithTimeout bounds each operation.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = d
	}
}

// Execute runs op for key through the configured patterns.
//
// The execution order is:
// 1. Rate limiter (if configured)
// 2. Bulkhead (if configured)
// 3. Circuit breaker for key (if configured)
// 4. Timeout (if configured)
func (e *Executor) Execute(ctx context.Context, key string, op func(context.Context) error) error {
	run := op

	if e.timeout > 0 {
		inner := run
		run = func(ctx context.Context) error {
			return Timeout(ctx, e.timeout, inner)
		}
	}

	if e.breakers != nil {
		inner := run
		cb := e.breakers.Get(key)
		run = func(ctx context.Context) error {
			return cb.Execute(ctx, inner)
		}
	}

	if e.bulkhead != nil {
		inner := run
		run = func(ctx context.Context) error {
			return e.bulkhead.Execute(ctx, inner)
		}
	}

	if e.rateLimiter != nil {
		inner := run
		run = func(ctx context.Context) error {
			return e.rateLimiter.Execute(ctx, inner)
		}
	}

	return run(ctx)
}

// Breakers returns the circuit breaker group, or nil.
func (e *Executor) Breakers() *BreakerGroup {
	return e.breakers
}
