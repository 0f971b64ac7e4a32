package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/invopop/jsonschema"
	"github.com/marmos91/dittovault/pkg/config"
	"github.com/marmos91/dittovault/pkg/media"
)

func main() {
	target := flag.String("type", "config", "Schema to generate: config or item")
	flag.Parse()

	var (
		schema      *jsonschema.Schema
		outputFile  string
		reflector   jsonschema.Reflector
		title, desc string
	)

	switch *target {
	case "config":
		reflector = jsonschema.Reflector{
			AllowAdditionalProperties: false,
			DoNotReference:            true,
			FieldNameTag:              "mapstructure",
		}
		schema = reflector.Reflect(&config.Config{})
		outputFile = "config.schema.json"
		title, desc = "DittoVault Configuration", "Configuration schema for DittoVault"
	case "item":
		// Records are persisted with their JSON field names
		reflector = jsonschema.Reflector{
			AllowAdditionalProperties: false,
		}
		schema = reflector.Reflect(&media.Item{})
		outputFile = "item.schema.json"
		title, desc = "DittoVault Item", "Persisted metadata record of a vault item"
	default:
		fmt.Fprintf(os.Stderr, "Unknown schema type %q (config, item)\n", *target)
		os.Exit(2)
	}

	schema.Title = title
	schema.Description = desc
	schema.Version = "1.0.0"

	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling schema: %v\n", err)
		os.Exit(1)
	}

	if flag.NArg() > 0 {
		outputFile = flag.Arg(0)
	}

	if err := os.WriteFile(outputFile, schemaJSON, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing schema file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("JSON schema written to %s\n", outputFile)
}
