// Package metrics exposes conversion counters for Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "patentgrant"

// Download results used as the "result" label.
const (
	ResultDownloaded = "downloaded"
	ResultCached     = "cached"
	ResultFailed     = "failed"
)

// Metrics holds the collectors recorded during conversions.
type Metrics struct {
	registry *prometheus.Registry

	RecordsConverted    prometheus.Counter
	LookaheadMismatches prometheus.Counter
	ArchivesDownloaded  *prometheus.CounterVec
	WeeksFailed         prometheus.Counter
	ConvertDuration     prometheus.Histogram
}

// New creates Metrics registered on a fresh registry that also carries the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry creates Metrics registered on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		RecordsConverted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_converted_total",
			Help:      "Patent records written to CSV output.",
		}),
		LookaheadMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookahead_mismatches_total",
			Help:      "INVT, ASSG or UREF blocks not followed by their NAM or PNO line.",
		}),
		ArchivesDownloaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archives_downloaded_total",
			Help:      "Weekly archives fetched, by result.",
		}, []string{"result"}),
		WeeksFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weeks_failed_total",
			Help:      "Weeks skipped because download, extraction or conversion failed.",
		}),
		ConvertDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "convert_duration_seconds",
			Help:      "Time to convert one weekly archive.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}
	reg.MustRegister(
		m.RecordsConverted,
		m.LookaheadMismatches,
		m.ArchivesDownloaded,
		m.WeeksFailed,
		m.ConvertDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
