package metrics

import (
	"time"

	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/vault"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// vaultMetrics is the Prometheus implementation of vault.Metrics.
type vaultMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	compensations     *prometheus.CounterVec
	inconsistencies   *prometheus.CounterVec
	purgedItems       prometheus.Counter
	purgeFailures     prometheus.Counter
}

// NewVaultMetrics returns engine metrics on the global registry, or nil when
// metrics are disabled.
func NewVaultMetrics() vault.Metrics {
	if !IsEnabled() {
		return nil
	}
	return NewVaultMetricsWith(GetRegistry())
}

// NewVaultMetricsWith registers engine metrics on reg.
func NewVaultMetricsWith(reg prometheus.Registerer) vault.Metrics {
	f := promauto.With(reg)
	return &vaultMetrics{
		operationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of vault operations by operation and error code",
			},
			[]string{"operation", "status", "code"},
		),
		operationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of vault operations in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.005, // 5ms
					0.01,  // 10ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.5,   // 500ms
					1,     // 1s
					5,     // 5s
					30,    // 30s
				},
			},
			[]string{"operation"},
		),
		compensations: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compensations_total",
				Help:      "Undo steps run after a partial failure, by operation and outcome",
			},
			[]string{"operation", "status"},
		),
		inconsistencies: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_inconsistencies_total",
				Help:      "Detected disagreements between the metadata index and the binary store",
			},
			[]string{"operation"},
		),
		purgedItems: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "purged_items_total",
				Help:      "Inactive items permanently removed",
			},
		),
		purgeFailures: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "purge_failures_total",
				Help:      "Inactive items a purge could not remove",
			},
		),
	}
}

func (m *vaultMetrics) RecordOperation(operation string, duration time.Duration, err error) {
	code := "none"
	if c, ok := media.CodeOf(err); ok {
		code = c.String()
	} else if err != nil {
		code = "unknown"
	}
	m.operationsTotal.WithLabelValues(operation, status(err), code).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *vaultMetrics) RecordCompensation(operation string, err error) {
	m.compensations.WithLabelValues(operation, status(err)).Inc()
}

func (m *vaultMetrics) RecordInconsistency(operation string) {
	m.inconsistencies.WithLabelValues(operation).Inc()
}

func (m *vaultMetrics) RecordPurge(purged, failed int) {
	m.purgedItems.Add(float64(purged))
	m.purgeFailures.Add(float64(failed))
}

