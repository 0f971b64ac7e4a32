package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete DittoVault configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DITTOVAULT_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type. Config holds
// type-specific maps (e.g. content.filesystem, metadata.postgres) and only
// the map matching the selected type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains process-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Vault configures the coordination engine and its access policy
	Vault VaultConfig `mapstructure:"vault" yaml:"vault"`

	// Content selects and configures the binary store
	Content ContentConfig `mapstructure:"content" yaml:"content"`

	// Metadata selects and configures the metadata index
	Metadata MetadataConfig `mapstructure:"metadata" yaml:"metadata"`

	// Sweep configures the background purge and orphan sweeper
	Sweep SweepConfig `mapstructure:"sweep" yaml:"sweep"`

	// Metrics configures the Prometheus and health endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`
}

// VaultConfig configures the engine.
type VaultConfig struct {
	// AdminRole is the identity role granting unrestricted access
	AdminRole string `mapstructure:"admin_role" yaml:"admin_role" validate:"required"`

	// UserRole is the identity role granting owner-scoped access
	UserRole string `mapstructure:"user_role" yaml:"user_role" validate:"required,nefield=AdminRole"`

	// OperationTimeout bounds the store calls of one operation (0 = none)
	OperationTimeout time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout" validate:"gte=0"`

	// DefaultSearchSize is used when a search does not ask for a size
	DefaultSearchSize int `mapstructure:"default_search_size" yaml:"default_search_size" validate:"gt=0"`

	// MaxSearchSize caps any search
	MaxSearchSize int `mapstructure:"max_search_size" yaml:"max_search_size" validate:"gtefield=DefaultSearchSize"`
}

// ContentConfig specifies binary store configuration.
type ContentConfig struct {
	// Type specifies which binary store implementation to use
	// Valid values: filesystem, memory, s3
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=filesystem memory s3"`

	// Filesystem is used when Type = "filesystem"
	Filesystem map[string]any `mapstructure:"filesystem" yaml:"filesystem,omitempty"`

	// Memory is used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory,omitempty"`

	// S3 is used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
}

// MetadataConfig specifies metadata index configuration.
type MetadataConfig struct {
	// Type specifies which index implementation to use
	// Valid values: memory, badger, postgres
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger postgres"`

	// Memory is used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory,omitempty"`

	// Badger is used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`

	// Postgres is used when Type = "postgres"
	Postgres map[string]any `mapstructure:"postgres" yaml:"postgres,omitempty"`

	// Cache wraps the index in a read-through record cache
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`
}

// CacheConfig configures the metadata read cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	Size    int           `mapstructure:"size" yaml:"size" validate:"gte=0"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl" validate:"gte=0"`
}

// SweepConfig configures the background sweeper.
type SweepConfig struct {
	// Enabled runs the sweeper periodically while serving
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval between sweeps
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"gte=0"`

	// RunTimeout bounds one sweep (0 = none)
	RunTimeout time.Duration `mapstructure:"run_timeout" yaml:"run_timeout" validate:"gte=0"`

	// PurgeInactive permanently removes trashed items on each sweep
	PurgeInactive bool `mapstructure:"purge_inactive" yaml:"purge_inactive"`

	// Orphans deletes binaries that no record references
	Orphans bool `mapstructure:"orphans" yaml:"orphans"`

	// OrphanGrace is how long a candidate must stay unreferenced before
	// it is deleted
	OrphanGrace time.Duration `mapstructure:"orphan_grace" yaml:"orphan_grace" validate:"gte=0"`

	// DryRun reports what would be removed without removing it
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`

	// DeletesPerSecond throttles orphan deletes (0 = unlimited)
	DeletesPerSecond float64 `mapstructure:"deletes_per_second" yaml:"deletes_per_second" validate:"gte=0"`
}

// MetricsConfig configures the metrics and health HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// A configPath naming a file that does not exist is not an error; defaults
// and environment variables are used instead.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// envKeys are bound explicitly so that DITTOVAULT_* variables apply even
// when no config file mentions the key.
var envKeys = []string{
	"logging.level", "logging.format", "logging.output",
	"server.shutdown_timeout",
	"vault.admin_role", "vault.user_role", "vault.operation_timeout",
	"vault.default_search_size", "vault.max_search_size",
	"content.type", "metadata.type",
	"metadata.cache.enabled", "metadata.cache.size", "metadata.cache.ttl",
	"sweep.enabled", "sweep.interval", "sweep.run_timeout", "sweep.purge_inactive",
	"sweep.orphans", "sweep.orphan_grace", "sweep.dry_run", "sweep.deletes_per_second",
	"metrics.enabled", "metrics.port",
}

func setupViper(v *viper.Viper, configPath string) {
	// Example: DITTOVAULT_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTOVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/dittovault/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

func readConfigFile(v *viper.Viper, configPath string) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
			return nil
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir uses XDG_CONFIG_HOME if set, otherwise ~/.config, or the
// current directory when the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittovault")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittovault")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
