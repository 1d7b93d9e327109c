// Package depotmetrics exposes Prometheus collectors fed by the
// scheduler and asset subsystems. Grounded on the
// WorkGroupSummary/SchedulerObserver pattern in
// DangerosoDavo-ecs/api.go (a plain struct describing one executed
// unit of work, handed to an observer interface after the fact) --
// here the observer is a concrete Prometheus-backed collector instead
// of a pluggable interface, since depot only needs the one backend.
package depotmetrics

import "github.com/prometheus/client_golang/prometheus"

// ScheduleSummary describes one schedule run, handed to
// SchedulerCollector.Observe after the schedule dispatcher finishes
// applying its command queues.
type ScheduleSummary struct {
	Schedule        string
	SystemsTotal    int
	SystemsExecuted int
	SystemsSkipped  int
	DurationSeconds float64
	Err             error
}

// SchedulerCollector records per-schedule dispatch metrics.
type SchedulerCollector struct {
	duration *prometheus.HistogramVec
	skipped  *prometheus.CounterVec
	errors   *prometheus.CounterVec
}

// NewSchedulerCollector builds a SchedulerCollector and registers its
// metrics against reg. Pass prometheus.NewRegistry() in tests to avoid
// colliding with the default global registry.
func NewSchedulerCollector(reg prometheus.Registerer) *SchedulerCollector {
	c := &SchedulerCollector{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "depot",
			Subsystem: "scheduler",
			Name:      "schedule_duration_seconds",
			Help:      "Duration of one schedule dispatch, including applied command queues.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"schedule"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "depot",
			Subsystem: "scheduler",
			Name:      "systems_skipped_total",
			Help:      "Systems skipped due to interval gating.",
		}, []string{"schedule"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "depot",
			Subsystem: "scheduler",
			Name:      "schedule_errors_total",
			Help:      "Schedule runs that returned a non-nil error.",
		}, []string{"schedule"}),
	}
	reg.MustRegister(c.duration, c.skipped, c.errors)
	return c
}

// Observe records one ScheduleSummary.
func (c *SchedulerCollector) Observe(s ScheduleSummary) {
	c.duration.WithLabelValues(s.Schedule).Observe(s.DurationSeconds)
	if s.SystemsSkipped > 0 {
		c.skipped.WithLabelValues(s.Schedule).Add(float64(s.SystemsSkipped))
	}
	if s.Err != nil {
		c.errors.WithLabelValues(s.Schedule).Inc()
	}
}

// AssetSummary describes the outcome of one AssetServer load task.
type AssetSummary struct {
	Extension       string
	DurationSeconds float64
	Err             error
}

// AssetCollector records asset-load metrics.
type AssetCollector struct {
	duration *prometheus.HistogramVec
	loaded   *prometheus.CounterVec
	failed   *prometheus.CounterVec
}

// NewAssetCollector builds an AssetCollector and registers its metrics
// against reg.
func NewAssetCollector(reg prometheus.Registerer) *AssetCollector {
	c := &AssetCollector{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "depot",
			Subsystem: "asset",
			Name:      "load_duration_seconds",
			Help:      "Duration of a single asset load task, from dispatch to loader return.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"extension"}),
		loaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "depot",
			Subsystem: "asset",
			Name:      "loaded_total",
			Help:      "Asset load tasks that completed successfully.",
		}, []string{"extension"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "depot",
			Subsystem: "asset",
			Name:      "load_failed_total",
			Help:      "Asset load tasks that failed (missing loader or loader error).",
		}, []string{"extension"}),
	}
	reg.MustRegister(c.duration, c.loaded, c.failed)
	return c
}

// Observe records one AssetSummary.
func (c *AssetCollector) Observe(s AssetSummary) {
	c.duration.WithLabelValues(s.Extension).Observe(s.DurationSeconds)
	if s.Err != nil {
		c.failed.WithLabelValues(s.Extension).Inc()
		return
	}
	c.loaded.WithLabelValues(s.Extension).Inc()
}
