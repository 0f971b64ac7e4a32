package metrics

import (
	"github.com/marmos91/dittovault/pkg/store/metadata/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// cacheMetrics is the Prometheus implementation of cache.Metrics.
type cacheMetrics struct {
	hits   prometheus.Counter
	misses prometheus.Counter
}

// NewCacheMetrics returns metadata cache metrics on the global registry, or
// nil when metrics are disabled.
func NewCacheMetrics() cache.Metrics {
	if !IsEnabled() {
		return nil
	}
	return NewCacheMetricsWith(GetRegistry())
}

// NewCacheMetricsWith registers metadata cache metrics on reg.
func NewCacheMetricsWith(reg prometheus.Registerer) cache.Metrics {
	lookups := promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata_cache",
			Name:      "lookups_total",
			Help:      "Metadata cache lookups by result",
		},
		[]string{"result"},
	)
	return &cacheMetrics{
		hits:   lookups.WithLabelValues("hit"),
		misses: lookups.WithLabelValues("miss"),
	}
}

func (m *cacheMetrics) RecordCacheHit()  { m.hits.Inc() }
func (m *cacheMetrics) RecordCacheMiss() { m.misses.Inc() }
