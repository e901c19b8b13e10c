package internaldefs

import (
	goRefMon "github.com/MrEthical07/goRefMon"
)

// CounterDef binds a monitor counter to its exported name.
type CounterDef struct {
	ID   goRefMon.MetricID
	Name string
	Help string
}

// HistogramDef binds a monitor histogram to its exported name.
type HistogramDef struct {
	ID   goRefMon.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported monitor counter.
var CounterDefs = []CounterDef{
	{ID: goRefMon.MetricTokenAssigned, Name: "refmon_token_assigned_total", Help: "Primary tokens assigned or exchanged into a process."},
	{ID: goRefMon.MetricLogonSessionCreated, Name: "refmon_logon_session_created_total", Help: "Logon sessions created."},
	{ID: goRefMon.MetricLogonSessionTerminated, Name: "refmon_logon_session_terminated_total", Help: "Logon sessions removed after their last reference."},
	{ID: goRefMon.MetricAuditSuppressed, Name: "refmon_audit_suppressed_total", Help: "Events the audit policy or privilege filter chose not to record."},
	{ID: goRefMon.MetricAuditAdmitted, Name: "refmon_audit_admitted_total", Help: "Audit records admitted to the queue."},
	{ID: goRefMon.MetricAuditDiscarded, Name: "refmon_audit_discarded_total", Help: "Audit records dropped by queue back-pressure."},
	{ID: goRefMon.MetricAuditRejected, Name: "refmon_audit_rejected_total", Help: "Audit records refused after the logging authority went away."},
	{ID: goRefMon.MetricAuditMarshalFailed, Name: "refmon_audit_marshal_failed_total", Help: "Audit records that could not be built."},
	{ID: goRefMon.MetricAuditDelivered, Name: "refmon_audit_delivered_total", Help: "Work items accepted by the logging authority."},
	{ID: goRefMon.MetricAuditDeliveryFailed, Name: "refmon_audit_delivery_failed_total", Help: "Work items the logging authority refused."},
	{ID: goRefMon.MetricAuditNoToken, Name: "refmon_audit_no_token_total", Help: "Policy evaluations that needed a subject token and had none."},
}

// HistogramDefs lists every exported monitor histogram.
var HistogramDefs = []HistogramDef{
	{ID: goRefMon.MetricAuditLogLatency, Name: "refmon_audit_log_latency_seconds", Help: "Audit record marshal and enqueue latency."},
}

// GaugeDef names one audit queue gauge.
type GaugeDef struct {
	Name  string
	Help  string
	Value func(s QueueState) float64
}

// QueueState is the subset of queue statistics exported as gauges.
type QueueState struct {
	Length         int
	Upper          int
	Lower          int
	Discarding     bool
	Dead           bool
	TotalDiscarded uint64
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// GaugeDefs lists the audit queue gauges.
var GaugeDefs = []GaugeDef{
	{Name: "refmon_audit_queue_length", Help: "Work items waiting for the logging authority.", Value: func(s QueueState) float64 { return float64(s.Length) }},
	{Name: "refmon_audit_queue_upper_bound", Help: "Queue length at which discarding starts.", Value: func(s QueueState) float64 { return float64(s.Upper) }},
	{Name: "refmon_audit_queue_lower_bound", Help: "Queue length at which discarding stops.", Value: func(s QueueState) float64 { return float64(s.Lower) }},
	{Name: "refmon_audit_queue_discarding", Help: "1 while the queue is discarding records.", Value: func(s QueueState) float64 { return boolValue(s.Discarding) }},
	{Name: "refmon_audit_queue_dead", Help: "1 once the logging authority is gone.", Value: func(s QueueState) float64 { return boolValue(s.Dead) }},
	{Name: "refmon_audit_queue_discarded_lifetime", Help: "Records discarded since start.", Value: func(s QueueState) float64 { return float64(s.TotalDiscarded) }},
}

// HistogramBounds are the bucket upper bounds in seconds, without +Inf.
var HistogramBounds = boundsSeconds()

func boundsSeconds() []float64 {
	out := make([]float64, len(goRefMon.HistogramBounds))
	for i, d := range goRefMon.HistogramBounds {
		out[i] = d.Seconds()
	}
	return out
}

// HistogramBoundSuffix names each bucket, +Inf last.
var HistogramBoundSuffix = []string{
	"5us",
	"10us",
	"25us",
	"50us",
	"100us",
	"250us",
	"500us",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
