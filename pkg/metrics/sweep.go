package metrics

import (
	"github.com/marmos91/dittovault/pkg/sweep"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// sweepMetrics is the Prometheus implementation of sweep.Metrics.
type sweepMetrics struct {
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	orphansFound    prometheus.Counter
	orphansDeleted  prometheus.Counter
	orphanFailures  prometheus.Counter
	lastSuccessUnix prometheus.Gauge
}

// NewSweepMetrics returns sweeper metrics on the global registry, or nil
// when metrics are disabled.
func NewSweepMetrics() sweep.Metrics {
	if !IsEnabled() {
		return nil
	}
	return NewSweepMetricsWith(GetRegistry())
}

// NewSweepMetricsWith registers sweeper metrics on reg.
func NewSweepMetricsWith(reg prometheus.Registerer) sweep.Metrics {
	f := promauto.With(reg)
	return &sweepMetrics{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweep",
				Name:      "runs_total",
				Help:      "Sweeper runs by outcome",
			},
			[]string{"status"},
		),
		runDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "sweep",
				Name:      "run_duration_seconds",
				Help:      "Duration of sweeper runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
		orphansFound: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweep",
				Name:      "orphans_found_total",
				Help:      "Binaries found with no metadata record",
			},
		),
		orphansDeleted: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweep",
				Name:      "orphans_deleted_total",
				Help:      "Orphaned binaries deleted",
			},
		),
		orphanFailures: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sweep",
				Name:      "orphan_delete_failures_total",
				Help:      "Orphaned binaries that could not be deleted",
			},
		),
		lastSuccessUnix: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "sweep",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last sweep that finished without error",
			},
		),
	}
}

func (m *sweepMetrics) RecordSweep(stats *sweep.Stats, err error) {
	m.runsTotal.WithLabelValues(status(err)).Inc()
	if stats == nil {
		return
	}
	m.runDuration.Observe(stats.Duration().Seconds())
	m.orphansFound.Add(float64(stats.OrphanedCount))
	m.orphansDeleted.Add(float64(stats.DeletedCount))
	m.orphanFailures.Add(float64(stats.FailedCount))
	if err == nil {
		m.lastSuccessUnix.Set(float64(stats.EndTime.Unix()))
	}
}
