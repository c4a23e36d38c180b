// Package prometheus exposes tenantguard engine metrics as a
// prometheus.Collector.
//
// [NewPrometheusExporter] accepts a [tenantguard.Engine] and serves its
// counters and the login latency histogram through promhttp. Counter names are
// prefixed tenantguard_*_total; the histogram is
// tenantguard_login_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers mount the
//     Handler or register the exporter themselves.
//   - Mutate engine state.
package prometheus
