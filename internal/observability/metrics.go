package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics recorded during bundling
type Metrics struct {
	registry *prometheus.Registry

	buildsTotal      *prometheus.CounterVec
	buildDuration    prometheus.Histogram
	assetsDiscovered prometheus.Counter
	extractDuration  prometheus.Histogram
	bundleSize       prometheus.Gauge
	storageWrites    *prometheus.CounterVec
}

// NewMetrics creates the bundling metrics on a private registry so several
// bundlers can live in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		buildsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fluxpack_builds_total",
				Help: "Total number of bundle builds",
			},
			[]string{"status"},
		),
		buildDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fluxpack_build_duration_seconds",
				Help:    "End-to-end bundle build latency in seconds",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),
		assetsDiscovered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fluxpack_assets_discovered_total",
				Help: "Total number of modules discovered by the graph builder",
			},
		),
		extractDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fluxpack_extract_duration_seconds",
				Help:    "Per-module read, parse and transform latency in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
		),
		bundleSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "fluxpack_bundle_size_bytes",
				Help: "Size of the last emitted bundle in bytes",
			},
		),
		storageWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fluxpack_storage_writes_total",
				Help: "Total number of bundle writes by sink and status",
			},
			[]string{"sink", "status"},
		),
	}
}

// Registry returns the registry holding the bundling metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordBuild records the outcome and duration of one build
func (m *Metrics) RecordBuild(duration time.Duration, err error) {
	m.buildsTotal.WithLabelValues(statusLabel(err)).Inc()
	m.buildDuration.Observe(duration.Seconds())
}

// RecordAssetDiscovered counts a newly discovered module
func (m *Metrics) RecordAssetDiscovered() {
	m.assetsDiscovered.Inc()
}

// RecordExtract records one module extraction
func (m *Metrics) RecordExtract(duration time.Duration) {
	m.extractDuration.Observe(duration.Seconds())
}

// SetBundleSize records the size of the emitted bundle
func (m *Metrics) SetBundleSize(bytes int) {
	m.bundleSize.Set(float64(bytes))
}

// RecordStorageWrite records a write through an output sink
func (m *Metrics) RecordStorageWrite(sink string, err error) {
	m.storageWrites.WithLabelValues(sink, statusLabel(err)).Inc()
}

// WriteTextfile writes the current metrics in the Prometheus text format,
// suitable for the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
