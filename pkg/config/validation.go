package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance. It carries the custom
// "planeid" and "tcpport" tags used by ParseArgs.
var validate *validator.Validate

func init() {
	validate = validator.New()
	registerArgValidators(validate)
}

// Validate validates the configuration using struct tags and custom rules.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if !cfg.Adapters.Control.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	reg := cfg.Registry
	if reg.MaxEntries > 0 && reg.InitialCapacity > reg.MaxEntries {
		return fmt.Errorf("registry: initial_capacity %d exceeds max_entries %d",
			reg.InitialCapacity, reg.MaxEntries)
	}

	if cfg.Server.Metrics.Enabled && cfg.Adapters.Control.Port != 0 &&
		cfg.Adapters.Control.Port == cfg.Server.Metrics.Port {
		return fmt.Errorf("server.metrics.port %d conflicts with adapters.control.port",
			cfg.Server.Metrics.Port)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
			e.Namespace(), e.Tag(), e.Value())
	}
	return err
}
