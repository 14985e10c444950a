// Package resilience guards calls to upstream GraphQL services and to the
// cache store.
//
// The Executor composes, from the outside in:
//
//   - Rate limiter: caps the request rate towards upstreams (optional).
//   - Bulkhead: caps concurrent upstream calls.
//   - Circuit breaker: one per key (the service type), so a failing upstream
//     family does not take the others down.
//   - Timeout: bounds each call.
//
// There is no retry: a failed upstream call is surfaced to the
// client, which owns retry policy.
//
//	exec := resilience.NewExecutor(
//	    resilience.WithBreakers(resilience.NewBreakerGroup(resilience.CircuitBreakerConfig{})),
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 64})),
//	    resilience.WithTimeout(10*time.Second),
//	)
//	err := exec.Execute(ctx, "gateway", func(ctx context.Context) error {
//	    return post(ctx)
//	})
package resilience
