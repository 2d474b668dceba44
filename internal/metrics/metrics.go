package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for the notifications counter.
const (
	OutcomeJobsEmitted     = "jobs_emitted"
	OutcomeNoFreshTag      = "no_fresh_tag"
	OutcomeTagNotLatest    = "tag_not_latest"
	OutcomePrerelease      = "prerelease"
	OutcomeMonorepoPending = "monorepo_pending"
	OutcomeNoDependents    = "no_dependents"
	OutcomeError           = "error"
)

// Metrics wraps Prometheus collectors for registry-sentinel.
type Metrics struct {
	registry                  *prometheus.Registry
	processingDurationSeconds prometheus.Histogram
	notificationsTotal        *prometheus.CounterVec
	jobsEmittedTotal          *prometheus.CounterVec
	popularPackageTotal       prometheus.Counter
	lastProcessedGauge        prometheus.Gauge
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		processingDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "registry_sentinel_processing_duration_seconds",
			Help:    "Duration of notification processing in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_sentinel_notifications_total",
			Help: "Total notifications processed by outcome.",
		}, []string{"outcome"}),
		jobsEmittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_sentinel_jobs_emitted_total",
			Help: "Total jobs emitted by build path.",
		}, []string{"path"}),
		popularPackageTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "registry_sentinel_popular_package_total",
			Help: "Total notifications whose dependent count exceeded the popularity threshold.",
		}),
		lastProcessedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "registry_sentinel_last_processed_timestamp",
			Help: "Unix timestamp of the last successfully processed notification.",
		}),
	}

	registry.MustRegister(
		m.processingDurationSeconds,
		m.notificationsTotal,
		m.jobsEmittedTotal,
		m.popularPackageTotal,
		m.lastProcessedGauge,
	)

	return m
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveProcessingDuration records the duration of one invocation.
func (m *Metrics) ObserveProcessingDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.processingDurationSeconds.Observe(duration.Seconds())
}

// IncNotifications increments the notifications counter for the outcome.
func (m *Metrics) IncNotifications(outcome string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(outcome).Inc()
}

// AddJobsEmitted adds to the jobs counter for the given build path.
func (m *Metrics) AddJobsEmitted(path string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.jobsEmittedTotal.WithLabelValues(path).Add(float64(count))
}

// IncPopularPackage increments the popular-package counter.
func (m *Metrics) IncPopularPackage() {
	if m == nil {
		return
	}
	m.popularPackageTotal.Inc()
}

// SetLastProcessedTimestamp sets the last successful processing time.
func (m *Metrics) SetLastProcessedTimestamp(t time.Time) {
	if m == nil {
		return
	}
	m.lastProcessedGauge.Set(float64(t.Unix()))
}
