package goRefMon

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/goRefMon/audit"
)

func BenchmarkMetricsIncParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricAuditAdmitted)
		}
	})
}

func BenchmarkMetricsObserveLatencyParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	d := 40 * time.Microsecond
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricAuditLogLatency, d)
		}
	})
}

func BenchmarkLogParallel(b *testing.B) {
	ctx := context.Background()
	m, err := New().WithAuthority(audit.NoOpAuthority{}).Build(ctx)
	if err != nil {
		b.Fatalf("build: %v", err)
	}
	defer m.Close(ctx)

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := m.Log(ctx, audit.AuditsDiscardedParams(1)); err != nil {
				b.Fatalf("log: %v", err)
			}
		}
	})
}
