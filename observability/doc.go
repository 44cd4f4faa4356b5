// Package observability provides an OpenTelemetry metrics extension for
// parley. The MetricsExtension implements lifecycle hooks to record
// system-wide counters for submitted batches, completed batches, and job
// successes and failures, labelled by platform.
//
// For per-call tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
