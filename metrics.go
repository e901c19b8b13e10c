package goRefMon

import (
	"sync/atomic"
	"time"
)

// MetricID names one monitor counter.
type MetricID uint16

const (
	// MetricTokenAssigned counts primary tokens assigned or exchanged into a process.
	MetricTokenAssigned MetricID = iota
	// MetricLogonSessionCreated counts logon sessions created through the monitor.
	MetricLogonSessionCreated
	// MetricLogonSessionTerminated counts sessions whose last reference was dropped.
	MetricLogonSessionTerminated
	// MetricAuditSuppressed counts events the audit policy chose not to record.
	MetricAuditSuppressed
	// MetricAuditAdmitted counts records admitted to the queue.
	MetricAuditAdmitted
	// MetricAuditDiscarded counts records dropped by queue back-pressure.
	MetricAuditDiscarded
	// MetricAuditRejected counts records refused because the authority is gone.
	MetricAuditRejected
	// MetricAuditMarshalFailed counts records that could not be built.
	MetricAuditMarshalFailed
	// MetricAuditDelivered counts work items accepted by the authority.
	MetricAuditDelivered
	// MetricAuditDeliveryFailed counts work items the authority refused.
	MetricAuditDeliveryFailed
	// MetricAuditNoToken counts policy evaluations that needed a token and had none.
	MetricAuditNoToken
	// MetricAuditLogLatency is the marshal plus enqueue latency histogram.
	MetricAuditLogLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters. A nil or disabled Metrics ignores updates.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only MetricAuditLogLatency
// carries a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id != MetricAuditLogLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value returns the current value of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter, and the latency buckets when enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricAuditLogLatency].buckets[i])
		}
		s.Histograms[MetricAuditLogLatency] = buckets
	}
	return s
}

// HistogramBounds are the upper bounds of the latency buckets. The last
// bucket is unbounded.
var HistogramBounds = [histBucketCount - 1]time.Duration{
	5 * time.Microsecond,
	10 * time.Microsecond,
	25 * time.Microsecond,
	50 * time.Microsecond,
	100 * time.Microsecond,
	250 * time.Microsecond,
	500 * time.Microsecond,
}

func bucketIndex(d time.Duration) int {
	for i, bound := range HistogramBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
