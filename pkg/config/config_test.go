package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"

content:
  type: "memory"

vault:
  operation_timeout: 15s
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Vault.OperationTimeout != 15*time.Second {
		t.Errorf("Expected operation_timeout 15s, got %v", cfg.Vault.OperationTimeout)
	}
	if cfg.Vault.AdminRole != "admin" || cfg.Vault.UserRole != "user" {
		t.Errorf("Expected default roles admin/user, got %q/%q", cfg.Vault.AdminRole, cfg.Vault.UserRole)
	}
	if cfg.Metadata.Type != "memory" {
		t.Errorf("Expected default metadata type 'memory', got %q", cfg.Metadata.Type)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// A missing explicit path must not fall back to ~/.config/dittovault
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Content.Type != "filesystem" {
		t.Errorf("Expected default content type 'filesystem', got %q", cfg.Content.Type)
	}
	if cfg.Sweep.Enabled {
		t.Error("Expected sweeper disabled without a config file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid.yaml", `
logging:
  level: INFO
  invalid yaml here [[[
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[logging]
level = "WARN"
format = "json"

[content]
type = "memory"

[sweep]
enabled = true
purge_inactive = true
interval = "10m"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Sweep.Interval != 10*time.Minute {
		t.Errorf("Expected sweep interval 10m, got %v", cfg.Sweep.Interval)
	}
}

func TestLoad_StoreSections(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
content:
  type: s3
  s3:
    bucket: media
    region: eu-west-1
    part_size: 10485760

metadata:
  type: postgres
  postgres:
    dsn: postgres://vault@localhost/vault
  cache:
    enabled: true
    ttl: 1m
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Content.S3["bucket"] != "media" {
		t.Errorf("Expected s3 bucket 'media', got %v", cfg.Content.S3["bucket"])
	}
	if cfg.Metadata.Postgres["dsn"] != "postgres://vault@localhost/vault" {
		t.Errorf("Expected postgres dsn, got %v", cfg.Metadata.Postgres["dsn"])
	}
	if cfg.Metadata.Cache.TTL != time.Minute {
		t.Errorf("Expected cache ttl 1m, got %v", cfg.Metadata.Cache.TTL)
	}
	if cfg.Metadata.Postgres["auto_migrate"] != true {
		t.Errorf("Expected auto_migrate default true, got %v", cfg.Metadata.Postgres["auto_migrate"])
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
metadata:
  type: postgres
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for postgres without dsn")
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Content.Type != "filesystem" {
		t.Errorf("Expected default content type 'filesystem', got %q", cfg.Content.Type)
	}
	if cfg.Metadata.Type != "badger" {
		t.Errorf("Expected default metadata type 'badger', got %q", cfg.Metadata.Type)
	}
	if !cfg.Metadata.Cache.Enabled {
		t.Error("Expected metadata cache enabled by default")
	}
	if !cfg.Sweep.Enabled || !cfg.Sweep.Orphans {
		t.Error("Expected orphan sweeping enabled by default")
	}
	if cfg.Sweep.PurgeInactive {
		t.Error("Expected automatic purge disabled by default")
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Port != 9090 {
		t.Errorf("Expected metrics enabled on 9090, got %v/%d", cfg.Metrics.Enabled, cfg.Metrics.Port)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	path := GetDefaultConfigPath()

	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	if dir := GetConfigDir(); dir != filepath.Join(xdg, "dittovault") {
		t.Errorf("Expected %q, got %q", filepath.Join(xdg, "dittovault"), dir)
	}
}

func TestConfigExists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	if ConfigExists() {
		t.Fatal("Expected no config in a fresh directory")
	}
	if _, err := InitConfig(false); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if !ConfigExists() {
		t.Error("Expected config to exist after InitConfig")
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("DITTOVAULT_LOGGING_LEVEL", "ERROR")
	t.Setenv("DITTOVAULT_VAULT_MAX_SEARCH_SIZE", "200")
	t.Setenv("DITTOVAULT_METRICS_PORT", "9191")

	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "INFO"

content:
  type: "memory"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Vault.MaxSearchSize != 200 {
		t.Errorf("Expected max_search_size 200 from env var, got %d", cfg.Vault.MaxSearchSize)
	}
	if cfg.Metrics.Port != 9191 {
		t.Errorf("Expected metrics port 9191 from env var, got %d", cfg.Metrics.Port)
	}
}
