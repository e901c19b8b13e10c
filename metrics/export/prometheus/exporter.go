package prometheus

import (
	"net/http"

	goRefMon "github.com/MrEthical07/goRefMon"
	"github.com/MrEthical07/goRefMon/audit"
	"github.com/MrEthical07/goRefMon/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsSource interface {
	MetricsSnapshot() goRefMon.MetricsSnapshot
	AuditStats() audit.QueueStats
}

// PrometheusExporter is a prometheus.Collector over monitor counters and the
// audit queue state. Values are read from the source on every scrape.
type PrometheusExporter struct {
	source     metricsSource
	counters   []*prometheus.Desc
	histograms []*prometheus.Desc
	gauges     []*prometheus.Desc
	registry   *prometheus.Registry
}

// NewPrometheusExporter creates an exporter reading from m.
func NewPrometheusExporter(m *goRefMon.Monitor) *PrometheusExporter {
	return NewPrometheusExporterFromSource(m)
}

// NewPrometheusExporterFromSource creates an exporter reading from source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	p := &PrometheusExporter{
		source:     source,
		counters:   make([]*prometheus.Desc, len(internaldefs.CounterDefs)),
		histograms: make([]*prometheus.Desc, len(internaldefs.HistogramDefs)),
		gauges:     make([]*prometheus.Desc, len(internaldefs.GaugeDefs)),
	}
	for i, def := range internaldefs.CounterDefs {
		p.counters[i] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	for i, def := range internaldefs.HistogramDefs {
		p.histograms[i] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	for i, def := range internaldefs.GaugeDefs {
		p.gauges[i] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
	}
	p.registry = prometheus.NewRegistry()
	p.registry.MustRegister(p)
	return p
}

// Describe implements prometheus.Collector.
func (p *PrometheusExporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range p.counters {
		ch <- d
	}
	for _, d := range p.histograms {
		ch <- d
	}
	for _, d := range p.gauges {
		ch <- d
	}
}

// Collect implements prometheus.Collector. Histograms are only emitted when
// the source records latency.
func (p *PrometheusExporter) Collect(ch chan<- prometheus.Metric) {
	if p == nil || p.source == nil {
		return
	}
	snapshot := p.source.MetricsSnapshot()

	for i, def := range internaldefs.CounterDefs {
		ch <- prometheus.MustNewConstMetric(p.counters[i], prometheus.CounterValue, float64(snapshot.Counters[def.ID]))
	}

	for i, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramBounds))
		for j, le := range internaldefs.HistogramBounds {
			buckets[le] = cumulative[j]
		}
		// Sum is not tracked by the in-process histogram.
		ch <- prometheus.MustNewConstHistogram(p.histograms[i], cumulative[len(cumulative)-1], 0, buckets)
	}

	stats := p.source.AuditStats()
	state := internaldefs.QueueState{
		Length:         stats.Length,
		Upper:          stats.Upper,
		Lower:          stats.Lower,
		Discarding:     stats.Discarding,
		Dead:           stats.Dead,
		TotalDiscarded: stats.TotalDiscarded,
	}
	for i, def := range internaldefs.GaugeDefs {
		ch <- prometheus.MustNewConstMetric(p.gauges[i], prometheus.GaugeValue, def.Value(state))
	}
}

// Registry returns the private registry holding only this exporter.
func (p *PrometheusExporter) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the exporter's registry in the Prometheus exposition
// format.
func (p *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
