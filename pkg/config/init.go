package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const configHeader = `# DittoVault Configuration File
#
# Every key can be overridden with an environment variable:
#   DITTOVAULT_<SECTION>_<KEY>, e.g. DITTOVAULT_LOGGING_LEVEL=DEBUG
#
# Store sections (content.*, metadata.*) are only read for the selected type.
`

var sectionComments = map[string]string{
	"logging":  "Log level (DEBUG, INFO, WARN, ERROR), format (text, json) and output (stdout, stderr, file path)",
	"server":   "Process lifecycle",
	"vault":    "Engine settings: identity roles, per-operation timeout, search paging",
	"content":  "Binary store: filesystem, memory or s3",
	"metadata": "Metadata index: memory, badger or postgres, with an optional read cache",
	"sweep":    "Background sweeper: purges trashed items and reclaims orphaned binaries",
	"metrics":  "Prometheus metrics and health probes",
}

// InitConfig writes a default config file to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default config file to path, creating parent
// directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to check config file: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateYAMLWithComments renders cfg as YAML with a header and one comment
// per top-level section. Durations are written in their string form.
func generateYAMLWithComments(cfg *Config) (string, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}

	formatDurations(reflect.ValueOf(*cfg), &doc)

	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i]
		if comment, ok := sectionComments[key.Value]; ok {
			key.HeadComment = comment
		}
	}

	body, err := yaml.Marshal(&doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	var b strings.Builder
	b.WriteString(configHeader)
	b.WriteString("\n")
	b.Write(body)
	return b.String(), nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// formatDurations walks a struct and its encoded mapping node together and
// rewrites duration fields from nanoseconds to "30s" form.
func formatDurations(v reflect.Value, node *yaml.Node) {
	if v.Kind() != reflect.Struct || node.Kind != yaml.MappingNode {
		return
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			continue
		}
		valueNode := mappingValue(node, name)
		if valueNode == nil {
			continue
		}

		fv := v.Field(i)
		if fv.Type() == durationType {
			valueNode.Kind = yaml.ScalarNode
			valueNode.Tag = "!!str"
			valueNode.Value = time.Duration(fv.Int()).String()
			continue
		}
		formatDurations(fv, valueNode)
	}
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
