// Package metrics provides Prometheus metrics for DittoVault components.
//
// All metrics are optional. If the registry is not initialized, constructors
// return nil and components fall back to their own no-op implementations.
//
// Usage:
//
//	metrics.InitRegistry()
//
//	engine, err := vault.New(vault.Config{
//		Metrics: metrics.NewVaultMetrics(),
//		...
//	})
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// registry is the global Prometheus registry for all DittoVault metrics.
	// Protected by registryOnce for write-once, read-many.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry with the Go
// runtime and process collectors.
//
// Safe to call multiple times; subsequent calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = reg
	})
}

// GetRegistry returns the global Prometheus registry, or nil when
// InitRegistry has not been called.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}

const namespace = "dittovault"

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
