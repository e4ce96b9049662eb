package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all pipeline instrumentation. Create one per process
// with New and share it across the watcher, scheduler, and API.
type Metrics struct {
	registry *prometheus.Registry

	FilesEnqueued      *prometheus.CounterVec
	JobsProcessed      *prometheus.CounterVec
	RecordsExtracted   *prometheus.CounterVec
	ArtifactsWritten   *prometheus.CounterVec
	JobsCleaned        prometheus.Counter
	ProcessingDuration prometheus.Histogram
}

// New creates a Metrics instance backed by its own registry, with Go
// runtime and process collectors included.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		FilesEnqueued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vcflow",
				Subsystem: "watcher",
				Name:      "files_enqueued_total",
				Help:      "Total number of files enqueued for processing",
			},
			[]string{"source"},
		),

		JobsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vcflow",
				Subsystem: "jobs",
				Name:      "processed_total",
				Help:      "Total number of jobs processed",
			},
			[]string{"outcome"},
		),

		RecordsExtracted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vcflow",
				Subsystem: "extract",
				Name:      "records_total",
				Help:      "Total number of records extracted from source files",
			},
			[]string{"kind"},
		),

		ArtifactsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vcflow",
				Subsystem: "export",
				Name:      "artifacts_total",
				Help:      "Total number of output artifacts written",
			},
			[]string{"format"},
		),

		JobsCleaned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "vcflow",
				Subsystem: "retention",
				Name:      "jobs_cleaned_total",
				Help:      "Total number of expired jobs removed by the retention sweep",
			},
		),

		ProcessingDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "vcflow",
				Subsystem: "jobs",
				Name:      "duration_seconds",
				Help:      "Job processing duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(
		m.FilesEnqueued,
		m.JobsProcessed,
		m.RecordsExtracted,
		m.ArtifactsWritten,
		m.JobsCleaned,
		m.ProcessingDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// RecordFileEnqueued increments the enqueue counter. Source is either
// "watcher", "scan", or "api".
func (m *Metrics) RecordFileEnqueued(source string) {
	m.FilesEnqueued.WithLabelValues(source).Inc()
}

// RecordJobProcessed increments the job counter with the given outcome
// and records how long the job took.
func (m *Metrics) RecordJobProcessed(outcome string, duration time.Duration) {
	m.JobsProcessed.WithLabelValues(outcome).Inc()
	m.ProcessingDuration.Observe(duration.Seconds())
}

// RecordExtracted adds the extracted record counts for a single file.
func (m *Metrics) RecordExtracted(vms, alarms int) {
	m.RecordsExtracted.WithLabelValues("vm").Add(float64(vms))
	m.RecordsExtracted.WithLabelValues("alarm").Add(float64(alarms))
}

// RecordArtifact increments the artifact counter for one output file.
func (m *Metrics) RecordArtifact(format string) {
	m.ArtifactsWritten.WithLabelValues(format).Inc()
}
