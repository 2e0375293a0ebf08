package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Fatalf("Expected valid config, got: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		errPart string
	}{
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "TRACE" },
			errPart: "Level",
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			errPart: "Format",
		},
		{
			name:    "zero server shutdown timeout",
			mutate:  func(c *Config) { c.Server.ShutdownTimeout = 0 },
			errPart: "ShutdownTimeout",
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *Config) { c.Server.Metrics.Port = 70000 },
			errPart: "Port",
		},
		{
			name:    "negative growth increment",
			mutate:  func(c *Config) { c.Registry.GrowthIncrement = -1 },
			errPart: "GrowthIncrement",
		},
		{
			name:    "negative dial timeout",
			mutate:  func(c *Config) { c.Discovery.DialTimeout = -time.Second },
			errPart: "DialTimeout",
		},
		{
			name:    "control port out of range",
			mutate:  func(c *Config) { c.Adapters.Control.Port = 65536 },
			errPart: "Port",
		},
		{
			name:    "negative max connections",
			mutate:  func(c *Config) { c.Adapters.Control.MaxConnections = -1 },
			errPart: "MaxConnections",
		},
		{
			name:    "negative idle timeout",
			mutate:  func(c *Config) { c.Adapters.Control.Timeouts.Idle = -time.Second },
			errPart: "Idle",
		},
		{
			name:    "invalid bind address",
			mutate:  func(c *Config) { c.Adapters.Control.BindAddress = "not a host!" },
			errPart: "BindAddress",
		},
		{
			name:    "no adapters enabled",
			mutate:  func(c *Config) { c.Adapters.Control.Enabled = false },
			errPart: "at least one adapter",
		},
		{
			name: "initial capacity above max entries",
			mutate: func(c *Config) {
				c.Registry.InitialCapacity = 20
				c.Registry.MaxEntries = 5
			},
			errPart: "max_entries",
		},
		{
			name: "metrics port clashes with control port",
			mutate: func(c *Config) {
				c.Server.Metrics.Enabled = true
				c.Server.Metrics.Port = 9000
				c.Adapters.Control.Port = 9000
			},
			errPart: "conflicts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.errPart, err)
			}
		})
	}
}

func TestValidate_LogLevelCaseInsensitive(t *testing.T) {
	for _, level := range []string{"debug", "INFO", "warn", "ERROR"} {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = level
		if err := Validate(cfg); err != nil {
			t.Errorf("Level %q should be valid: %v", level, err)
		}
	}
}

func TestValidate_EphemeralPortsNeverClash(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Metrics.Enabled = true
	cfg.Adapters.Control.Port = 0

	if err := Validate(cfg); err != nil {
		t.Fatalf("Expected valid config, got: %v", err)
	}
}
