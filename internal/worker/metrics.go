package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry            *prometheus.Registry
	mergesTotal         *prometheus.CounterVec
	mergeDuration       *prometheus.HistogramVec
	activeMerges        prometheus.Gauge
	pixelsRenderedTotal prometheus.Counter
	outputBytesTotal    prometheus.Counter
	computeTimeMSTotal  prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		mergesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "photoframe_worker_merges_total",
			Help: "Total merge jobs by source type and final status.",
		}, []string{"source_type", "status"}),
		mergeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "photoframe_worker_merge_duration_seconds",
			Help:    "Total processing duration for each merge job.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source_type", "status"}),
		activeMerges: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "photoframe_worker_active_merges",
			Help: "Current number of active merge jobs in the worker.",
		}),
		pixelsRenderedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photoframe_usage_pixels_rendered_total",
			Help: "Total composite pixels rendered across successful merges.",
		}),
		outputBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photoframe_usage_output_bytes_total",
			Help: "Total output bytes written across successful merges.",
		}),
		computeTimeMSTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "photoframe_usage_compute_time_ms_total",
			Help: "Total compute time in milliseconds across successful merges.",
		}),
	}

	registry.MustRegister(
		m.mergesTotal,
		m.mergeDuration,
		m.activeMerges,
		m.pixelsRenderedTotal,
		m.outputBytesTotal,
		m.computeTimeMSTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
