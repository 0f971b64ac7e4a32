package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittovault/pkg/policy"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/marmos91/dittovault/pkg/store/metadata/cache"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Booleans keep their zero value; GetDefaultConfig turns features on
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyVaultDefaults(&cfg.Vault)
	applyContentDefaults(&cfg.Content)
	applyMetadataDefaults(&cfg.Metadata)
	applySweepDefaults(&cfg.Sweep)
	applyMetricsDefaults(&cfg.Metrics)
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
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyVaultDefaults(cfg *VaultConfig) {
	if cfg.AdminRole == "" {
		cfg.AdminRole = policy.DefaultAdminRole
	}
	if cfg.UserRole == "" {
		cfg.UserRole = policy.DefaultUserRole
	}
	if cfg.DefaultSearchSize == 0 {
		cfg.DefaultSearchSize = metadata.DefaultSearchSize
	}
	if cfg.MaxSearchSize == 0 {
		cfg.MaxSearchSize = metadata.MaxSearchSize
	}
}

// applyContentDefaults fills the defaults of every store type so that a
// generated config file documents them all.
func applyContentDefaults(cfg *ContentConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}

	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = filepath.Join(os.TempDir(), "dittovault-content")
	}
	if _, ok := cfg.Filesystem["compress"]; !ok {
		cfg.Filesystem["compress"] = false
	}
	if _, ok := cfg.S3["region"]; !ok {
		cfg.S3["region"] = "us-east-1"
	}
	if _, ok := cfg.S3["key_prefix"]; !ok {
		cfg.S3["key_prefix"] = "vault/"
	}
}

func applyMetadataDefaults(cfg *MetadataConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.Postgres == nil {
		cfg.Postgres = make(map[string]any)
	}

	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = filepath.Join(os.TempDir(), "dittovault-metadata")
	}
	if _, ok := cfg.Postgres["auto_migrate"]; !ok {
		cfg.Postgres["auto_migrate"] = true
	}

	if cfg.Cache.Size == 0 {
		cfg.Cache.Size = cache.DefaultSize
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = cache.DefaultTTL
	}
}

func applySweepDefaults(cfg *SweepConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = 24 * time.Hour
	}
	if cfg.RunTimeout == 0 {
		cfg.RunTimeout = 30 * time.Minute
	}
	if cfg.OrphanGrace == 0 {
		cfg.OrphanGrace = 5 * time.Minute
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// GetDefaultConfig returns a Config with all default values applied and the
// optional features a fresh install wants turned on.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Metadata: MetadataConfig{
			Type:  "badger",
			Cache: CacheConfig{Enabled: true},
		},
		Sweep: SweepConfig{
			Enabled:       true,
			PurgeInactive: false,
			Orphans:       true,
		},
		Metrics: MetricsConfig{Enabled: true},
	}

	ApplyDefaults(cfg)
	return cfg
}
