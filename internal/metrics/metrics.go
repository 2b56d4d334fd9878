// Package metrics exposes Prometheus instruments for the extraction pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for policy_extractions_total.
const (
	OutcomeOK          = "ok"
	OutcomeParseError  = "parse_error"
	OutcomeReportError = "report_error"
)

type Metrics struct {
	registry    *prometheus.Registry
	extractions *prometheus.CounterVec
	duration    prometheus.Histogram
	fieldMisses *prometheus.CounterVec
}

// New registers the pipeline instruments on a fresh registry, plus the
// standard Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policy_extractions_total",
			Help: "Documents processed, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "policy_extraction_duration_seconds",
			Help:    "Wall time of one pipeline run.",
			Buckets: prometheus.DefBuckets,
		}),
		fieldMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "policy_field_misses_total",
			Help: "Extractions where a field pattern found no match.",
		}, []string{"field"}),
	}
	reg.MustRegister(
		m.extractions,
		m.duration,
		m.fieldMisses,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveExtraction(outcome string, d time.Duration) {
	m.extractions.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) FieldMissed(field string) {
	m.fieldMisses.WithLabelValues(field).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
