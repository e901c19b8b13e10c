// Package prometheus exposes monitor counters and audit queue state as a
// Prometheus collector.
//
// [NewPrometheusExporter] accepts a [goRefMon.Monitor] and returns a
// collector registered in its own registry. [PrometheusExporter.Handler]
// serves that registry. Counter names are prefixed refmon_*_total; the
// single histogram is refmon_audit_log_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers mount the
//     Handler or register the collector themselves.
//   - Mutate monitor state.
package prometheus
