// Package metrics provides Prometheus metrics collection for control2310.
//
// All metrics are optional. If the registry is not initialized, components
// use no-op implementations, so the server runs the same with or without
// metrics collection enabled.
//
// Usage:
//
//	// Initialize global registry (typically in main)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	controlMetrics := prometheus.NewControlMetrics()
//
//	// Or use nil for no-op behavior
//	adapter := control.New(config, nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is written once by InitRegistry and read afterwards.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry. Subsequent calls
// are ignored.
//
// Thread safety:
// sync.Once orders the registry write before every later read.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry, or nil if
// InitRegistry has not been called.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
