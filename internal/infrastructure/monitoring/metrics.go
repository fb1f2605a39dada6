package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of the port layer
type Metrics struct {
	// Thread metrics
	ThreadsActive   prometheus.Gauge
	ThreadsCreated  prometheus.Counter
	ThreadsFinished prometheus.Counter
	AllocFailures   *prometheus.CounterVec

	// Mutex metrics
	MutexesRegistered prometheus.Gauge

	// Root scan metrics
	RootScans     prometheus.Counter
	RootsReported *prometheus.CounterVec
	ScanDuration  prometheus.Histogram

	// Heap metrics
	HeapInUse *prometheus.GaugeVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics set on its own registry so that several
// ports can coexist in one process.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ThreadsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "threadport_threads_active",
				Help: "Number of threads in the registry, including main",
			},
		),
		ThreadsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "threadport_threads_created_total",
				Help: "Total number of threads created",
			},
		),
		ThreadsFinished: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "threadport_threads_finished_total",
				Help: "Total number of threads that finished",
			},
		),
		AllocFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threadport_alloc_failures_total",
				Help: "Allocation failures by resource",
			},
			[]string{"resource"},
		),

		MutexesRegistered: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "threadport_mutexes_registered",
				Help: "Number of mutexes in the mutex registry",
			},
		),

		RootScans: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "threadport_root_scans_total",
				Help: "Total number of root scans",
			},
		),
		RootsReported: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "threadport_roots_reported_total",
				Help: "Root ranges reported to the collector by kind",
			},
			[]string{"kind"},
		),
		ScanDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "threadport_root_scan_duration_seconds",
				Help:    "Root scan duration in seconds",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05},
			},
		),

		HeapInUse: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "threadport_heap_bytes_in_use",
				Help: "Bytes allocated from each heap",
			},
			[]string{"heap"},
		),
	}
}

// Registry returns the registry holding these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordScan records one root scan.
func (m *Metrics) RecordScan(start time.Time) {
	m.RootScans.Inc()
	m.ScanDuration.Observe(time.Since(start).Seconds())
}

// RecordAllocFailure records an allocation failure for resource.
func (m *Metrics) RecordAllocFailure(resource string) {
	m.AllocFailures.WithLabelValues(resource).Inc()
}

// SetHeap records bytes in use for the named heap.
func (m *Metrics) SetHeap(name string, bytes uintptr) {
	m.HeapInUse.WithLabelValues(name).Set(float64(bytes))
}
