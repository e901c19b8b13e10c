// Package otel provides OpenTelemetry bindings for monitor counters and the
// audit queue state.
//
// [NewOTelExporter] registers an Int64ObservableCounter per monitor counter,
// an Int64ObservableGauge per latency bucket and a Float64ObservableGauge
// per queue gauge. One callback reads [goRefMon.Monitor.MetricsSnapshot]
// and [goRefMon.Monitor.AuditStats] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate monitor state.
package otel
