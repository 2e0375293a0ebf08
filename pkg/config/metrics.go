package config

import (
	"github.com/marmos91/control2310/pkg/metrics"
	promMetrics "github.com/marmos91/control2310/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// ControlMetrics is the collector for the control adapter (never nil,
	// no-op if disabled)
	ControlMetrics metrics.ControlMetrics
}

// InitializeMetrics creates the metrics components based on configuration.
//
// If metrics are enabled:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed collectors
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op collectors
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			ControlMetrics: metrics.NewNoopControlMetrics(),
		}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server: metrics.NewServer(metrics.ServerConfig{
			Port: cfg.Server.Metrics.Port,
		}),
		ControlMetrics: promMetrics.NewControlMetrics(),
	}
}
