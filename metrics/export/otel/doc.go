// Package otel provides OpenTelemetry metric exporter bindings for tenantguard
// counters and the login latency histogram.
//
// [NewOTelExporter] folds the per-operation engine counters into one
// tenantguard.auth.operations counter keyed by operation and outcome, keeps
// sessions, enrollment fallbacks, cache failures and lost audit events as
// their own counters, and reports login duration as cumulative buckets on a
// gauge labelled le. A single callback reads
// [tenantguard.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
