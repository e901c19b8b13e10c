package goRefMon

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledIgnoresUpdates(t *testing.T) {
	m := NewMetrics(MetricsConfig{})
	m.Inc(MetricAuditAdmitted)
	m.Observe(MetricAuditLogLatency, time.Microsecond)
	if m.Value(MetricAuditAdmitted) != 0 {
		t.Fatal("disabled metrics counted")
	}
	if s := m.Snapshot(); len(s.Counters) != 0 || len(s.Histograms) != 0 {
		t.Fatalf("snapshot = %+v", s)
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricAuditAdmitted)
	if nilMetrics.Enabled() || nilMetrics.Value(MetricAuditAdmitted) != 0 {
		t.Fatal("nil metrics must be inert")
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(MetricAuditDelivered)
			}
		}()
	}
	wg.Wait()
	if got := m.Value(MetricAuditDelivered); got != 8000 {
		t.Fatalf("delivered = %d", got)
	}
	if s := m.Snapshot(); s.Counters[MetricAuditDelivered] != 8000 {
		t.Fatalf("snapshot delivered = %d", s.Counters[MetricAuditDelivered])
	}
}

func TestLatencyBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricAuditLogLatency, 3*time.Microsecond)
	m.Observe(MetricAuditLogLatency, 5*time.Microsecond)
	m.Observe(MetricAuditLogLatency, 60*time.Microsecond)
	m.Observe(MetricAuditLogLatency, time.Second)
	m.Observe(MetricAuditAdmitted, time.Second)

	buckets := m.Snapshot().Histograms[MetricAuditLogLatency]
	want := []uint64{2, 0, 0, 0, 1, 0, 0, 1}
	if len(buckets) != len(want) {
		t.Fatalf("buckets = %v", buckets)
	}
	for i := range want {
		if buckets[i] != want[i] {
			t.Fatalf("bucket %d = %d, want %d (%v)", i, buckets[i], want[i], buckets)
		}
	}
}
