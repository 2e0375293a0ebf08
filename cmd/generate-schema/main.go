// Command generate-schema writes the JSON schema of the control2310
// configuration file, for editor completion and CI validation of configs.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/control2310/pkg/config"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "generate-schema: %v\n", err)
		os.Exit(1)
	}
}

// run parses flags and writes the schema. An output of "-" writes to stdout.
func run(args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("generate-schema", pflag.ContinueOnError)
	output := flags.StringP("output", "o", "config.schema.json", `Schema file to write ("-" for stdout)`)
	indent := flags.String("indent", "  ", "Indentation of the generated JSON")
	if err := flags.Parse(args); err != nil {
		return err
	}

	data, err := configSchema(*indent)
	if err != nil {
		return err
	}

	if *output == "-" {
		_, err := stdout.Write(data)
		return err
	}

	if err := os.WriteFile(*output, data, 0644); err != nil {
		return fmt.Errorf("write schema file: %w", err)
	}
	fmt.Fprintf(stdout, "JSON schema written to %s\n", *output)
	return nil
}

// configSchema reflects config.Config using the mapstructure keys that
// viper reads, so the schema matches what Load accepts.
func configSchema(indent string) ([]byte, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "mapstructure",
	}

	schema := reflector.Reflect(&config.Config{})
	schema.Title = "control2310 Configuration"
	schema.Description = "Configuration schema for the control2310 plane registry"

	data, err := json.MarshalIndent(schema, "", indent)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return append(data, '\n'), nil
}
