package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// configHeader opens every generated configuration file.
const configHeader = `# control2310 Configuration File
#
# Values shown are the defaults. Every key can be overridden with an
# environment variable: CONTROL2310_<SECTION>_<KEY>, for example
# CONTROL2310_ADAPTERS_CONTROL_MAX_CONNECTIONS=64.
`

// sectionComments documents each top-level section, in output order.
var sectionComments = []struct {
	key     string
	comment string
}{
	{"logging", "Logging: level (DEBUG, INFO, WARN, ERROR), format (text, json) and\n# output (stdout, stderr or a file path)."},
	{"server", "Server-wide settings and the optional Prometheus endpoint."},
	{"registry", "Registry sizing. max_entries 0 keeps the registry unbounded."},
	{"discovery", "Mapper connection used when a mapper port is given on the command line."},
	{"adapters", "Protocol adapters. Port 0 asks the OS for an ephemeral port, and zero\n# timeouts or limits disable them."},
}

// InitConfig writes a sample configuration to the default location and
// returns its path.
//
// Returns an error if the file already exists and force is false.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a sample configuration to path, creating parent
// directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use force to overwrite)", path)
		}
	}

	content, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateYAMLWithComments renders cfg section by section, each preceded
// by a comment.
func generateYAMLWithComments(cfg *Config) (string, error) {
	values, err := toMap(cfg)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(configHeader)

	for _, section := range sectionComments {
		value, ok := values[section.key]
		if !ok {
			continue
		}

		out, err := yaml.Marshal(map[string]any{section.key: value})
		if err != nil {
			return "", fmt.Errorf("failed to encode %s section: %w", section.key, err)
		}

		b.WriteString("\n# ")
		b.WriteString(section.comment)
		b.WriteString("\n")
		b.Write(out)
	}

	return b.String(), nil
}

// toMap converts a configuration struct into nested maps keyed by the
// mapstructure tags. Durations become strings such as "30s".
func toMap(v any) (map[string]any, error) {
	out := make(map[string]any)
	if err := mapstructure.Decode(v, &out); err != nil {
		return nil, fmt.Errorf("failed to convert config to map: %w", err)
	}

	for key, value := range out {
		normalized, err := normalizeValue(value)
		if err != nil {
			return nil, err
		}
		out[key] = normalized
	}
	return out, nil
}

func normalizeValue(value any) (any, error) {
	switch val := value.(type) {
	case time.Duration:
		return val.String(), nil
	case map[string]any:
		for k, nested := range val {
			normalized, err := normalizeValue(nested)
			if err != nil {
				return nil, err
			}
			val[k] = normalized
		}
		return val, nil
	}

	if rv := reflect.ValueOf(value); rv.Kind() == reflect.Struct ||
		(rv.Kind() == reflect.Pointer && rv.Elem().Kind() == reflect.Struct) {
		return toMap(value)
	}
	return value, nil
}
