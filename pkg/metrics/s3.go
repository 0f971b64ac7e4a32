package metrics

import (
	"time"

	"github.com/marmos91/dittovault/pkg/store/content/s3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// s3Metrics is the Prometheus implementation of s3.S3Metrics.
type s3Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
	multipartUploads  *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
}

// NewS3Metrics returns S3 binary store metrics on the global registry.
//
// Returns nil if metrics are not enabled, which makes the S3 store use its
// built-in no-op implementation.
func NewS3Metrics() s3.S3Metrics {
	if !IsEnabled() {
		return nil
	}
	return NewS3MetricsWith(GetRegistry())
}

// NewS3MetricsWith registers S3 binary store metrics on reg.
func NewS3MetricsWith(reg prometheus.Registerer) s3.S3Metrics {
	f := promauto.With(reg)
	return &s3Metrics{
		operationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "s3",
				Name:      "operations_total",
				Help:      "Total number of S3 operations by operation type and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "s3",
				Name:      "operation_duration_seconds",
				Help:      "Duration of S3 operations in seconds",
				Buckets: []float64{
					0.01,  // 10ms
					0.025, // 25ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.25,  // 250ms
					0.5,   // 500ms
					1.0,   // 1s
					2.5,   // 2.5s
					5.0,   // 5s
					10.0,  // 10s
					30.0,  // 30s
				},
			},
			[]string{"operation"},
		),
		bytesTransferred: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "s3",
				Name:      "bytes_transferred_total",
				Help:      "Total bytes transferred in S3 operations",
			},
			[]string{"operation"},
		),
		multipartUploads: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "s3",
				Name:      "multipart_uploads_total",
				Help:      "Total number of S3 multipart uploads by status",
			},
			[]string{"status"}, // initiated, completed, aborted
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "s3",
				Name:      "errors_total",
				Help:      "Total number of S3 operation errors by operation type",
			},
			[]string{"operation"},
		),
	}
}

func (m *s3Metrics) ObserveOperation(operation string, duration time.Duration, err error) {
	if err != nil {
		m.errorsTotal.WithLabelValues(operation).Inc()
	}
	m.operationsTotal.WithLabelValues(operation, status(err)).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *s3Metrics) RecordBytes(operation string, bytes int64) {
	m.bytesTransferred.WithLabelValues(operation).Add(float64(bytes))
}

func (m *s3Metrics) RecordMultipartUpload(status string) {
	m.multipartUploads.WithLabelValues(status).Inc()
}
