// Package health reports whether the gateway can serve traffic.
//
// A Checker reports the state of one dependency: the cache store, the usage
// transport, or the per-service upstream circuit breakers. An Aggregator runs
// every registered checker under a shared deadline and folds the results into
// a single Status.
//
// Three HTTP probes are exposed:
//
//	/healthz  liveness, always OK while the process serves requests
//	/readyz   readiness, 503 once any checker is unhealthy
//	/health   detailed JSON report of every checker
//
// A degraded dependency keeps the gateway ready. The cache store in
// particular is fail-open: requests keep flowing to upstreams while it is
// down, so a failed store ping is reported as degraded rather than unhealthy.
package health
