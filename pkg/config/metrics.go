package config

import (
	"github.com/marmos91/dittovault/pkg/metrics"
	"github.com/marmos91/dittovault/pkg/store/content/s3"
	"github.com/marmos91/dittovault/pkg/store/metadata/cache"
	"github.com/marmos91/dittovault/pkg/sweep"
	"github.com/marmos91/dittovault/pkg/vault"
)

// MetricsResult contains the metrics collectors created from configuration.
//
// Every collector is nil when metrics are disabled; components treat a nil
// collector as "do not report".
type MetricsResult struct {
	Vault vault.Metrics
	Sweep sweep.Metrics
	Cache cache.Metrics
	S3    s3.S3Metrics
}

// InitializeMetrics initializes the global Prometheus registry and creates
// the collectors for every component when metrics are enabled.
//
// Call it once per process: collectors register on the global registry.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Vault: metrics.NewVaultMetrics(),
		Sweep: metrics.NewSweepMetrics(),
		Cache: metrics.NewCacheMetrics(),
		S3:    metrics.NewS3Metrics(),
	}
}

// CreateMetricsServer returns the metrics and health server, or nil when
// metrics are disabled.
func CreateMetricsServer(cfg *Config, version string, checks map[string]metrics.HealthChecker) *metrics.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.NewServer(metrics.ServerConfig{
		Port:    cfg.Metrics.Port,
		Version: version,
	}, checks)
}
