package config

import (
	"github.com/marmos91/dittovault/pkg/policy"
	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/marmos91/dittovault/pkg/sweep"
	"github.com/marmos91/dittovault/pkg/vault"
)

// CreateEngine builds the coordination engine over already created stores.
// m may be nil.
func CreateEngine(cfg *VaultConfig, index metadata.Index, store content.BinaryStore, m vault.Metrics) (*vault.Engine, error) {
	return vault.New(vault.Config{
		Index:             index,
		Content:           store,
		Policy:            policy.New(cfg.AdminRole, cfg.UserRole),
		OperationTimeout:  cfg.OperationTimeout,
		DefaultSearchSize: cfg.DefaultSearchSize,
		MaxSearchSize:     cfg.MaxSearchSize,
		Metrics:           m,
	})
}

// SweeperConfig converts the sweep section to the sweeper's own config.
func (c *SweepConfig) SweeperConfig() sweep.Config {
	return sweep.Config{
		Enabled:          c.Enabled,
		Interval:         c.Interval,
		RunTimeout:       c.RunTimeout,
		PurgeInactive:    c.PurgeInactive,
		Orphans:          c.Orphans,
		OrphanGrace:      c.OrphanGrace,
		DryRun:           c.DryRun,
		DeletesPerSecond: c.DeletesPerSecond,
	}
}

// CreateSweeper builds the sweeper. It runs against the engine for purges
// and directly against the stores for orphan detection. m may be nil.
func CreateSweeper(cfg *SweepConfig, engine *vault.Engine, index metadata.Index, store content.BinaryStore, m sweep.Metrics) (*sweep.Sweeper, error) {
	var purger sweep.Purger
	if engine != nil {
		purger = engine
	}
	return sweep.New(purger, index, store, cfg.SweeperConfig(), m)
}
