package config

import (
	"strings"
	"time"

	"github.com/marmos91/control2310/pkg/adapter/control"
	"github.com/marmos91/control2310/pkg/discovery"
	"github.com/marmos91/control2310/pkg/registry"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Zero values that carry meaning (port 0, unlimited connections, no
//     timeouts, unbounded registry) are left alone
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyRegistryDefaults(&cfg.Registry)
	applyDiscoveryDefaults(&cfg.Discovery)
	applyControlDefaults(&cfg.Adapters.Control)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

// applyRegistryDefaults sets registry sizing defaults. MaxEntries stays 0
// (unbounded) unless configured.
func applyRegistryDefaults(cfg *registry.Config) {
	if cfg.InitialCapacity == 0 {
		cfg.InitialCapacity = registry.DefaultInitialCapacity
	}
	if cfg.GrowthIncrement == 0 {
		cfg.GrowthIncrement = registry.DefaultGrowthIncrement
	}
}

// applyDiscoveryDefaults sets discovery defaults.
func applyDiscoveryDefaults(cfg *discovery.Config) {
	if cfg.Host == "" {
		cfg.Host = discovery.DefaultHost
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
}

// applyControlDefaults sets control adapter defaults.
//
// Port 0 asks the OS for an ephemeral port, MaxConnections 0 is unlimited
// and zero timeouts disable deadlines, matching a server with no admission
// control.
func applyControlDefaults(cfg *control.ControlConfig) {
	if cfg.MaxLineLength == 0 {
		cfg.MaxLineLength = 4096
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Registering viper keys for environment overrides
//   - Testing
func GetDefaultConfig() *Config {
	cfg := &Config{
		Adapters: AdaptersConfig{
			Control: control.ControlConfig{
				Enabled: true,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
