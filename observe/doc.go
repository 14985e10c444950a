// Package observe provides the telemetry primitives for the gateway:
// a zerolog-backed structured Logger, OpenTelemetry tracing and metrics,
// and a Middleware that instruments one dispatched request.
//
// Exporters are selected by name (otlp, prometheus, stdout, none). When the
// prometheus exporter is active, MetricsHandler serves the scrape endpoint.
package observe
