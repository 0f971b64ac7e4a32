package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate = validator.New()

// Validate validates the configuration using struct tags and custom rules.
//
// Log level normalization is handled in ApplyDefaults, not here. Validation
// accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if cfg.Content.Type == "filesystem" {
		if p, _ := cfg.Content.Filesystem["path"].(string); p == "" {
			return fmt.Errorf("content.filesystem.path is required")
		}
	}
	if cfg.Content.Type == "s3" {
		if b, _ := cfg.Content.S3["bucket"].(string); b == "" {
			return fmt.Errorf("content.s3.bucket is required")
		}
	}

	if cfg.Metadata.Type == "badger" {
		inMemory, _ := cfg.Metadata.Badger["in_memory"].(bool)
		if p, _ := cfg.Metadata.Badger["db_path"].(string); p == "" && !inMemory {
			return fmt.Errorf("metadata.badger.db_path is required")
		}
	}
	if cfg.Metadata.Type == "postgres" {
		if dsn, _ := cfg.Metadata.Postgres["dsn"].(string); dsn == "" {
			return fmt.Errorf("metadata.postgres.dsn is required")
		}
	}

	if cfg.Sweep.Enabled {
		if cfg.Sweep.Interval <= 0 {
			return fmt.Errorf("sweep.interval must be positive when the sweeper is enabled")
		}
		if !cfg.Sweep.PurgeInactive && !cfg.Sweep.Orphans {
			return fmt.Errorf("sweep: enabled but neither purge_inactive nor orphans is set")
		}
	}
	// An in-memory index starts empty, so every persisted binary would look
	// orphaned after a restart.
	if cfg.Sweep.Orphans && cfg.Metadata.Type == "memory" && cfg.Content.Type != "memory" {
		return fmt.Errorf("sweep.orphans requires a persistent metadata index when content is %q", cfg.Content.Type)
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
