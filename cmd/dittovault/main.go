package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/config"
	"github.com/marmos91/dittovault/pkg/metrics"
	"github.com/marmos91/dittovault/pkg/server"
	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/marmos91/dittovault/pkg/vault"
)

// Set with -ldflags "-X main.version=..."
var version = "dev"

const usage = `DittoVault - media vault coordination engine

Usage:
  dittovault <command> [flags]

Commands:
  init      Write a default configuration file
  serve     Run the sweeper and the metrics/health server until interrupted
  purge     Permanently remove every trashed item once
  sweep     Run one sweep (purge and/or orphan reclaim) as configured
  version   Print the version

Run 'dittovault <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "init":
		err = runInit(args)
	case "serve":
		err = runServe(args)
	case "purge":
		err = runPurge(args)
	case "sweep":
		err = runSweep(args)
	case "version", "-v", "--version":
		fmt.Printf("dittovault %s\n", version)
	case "help", "-h", "--help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("config", "", "Where to write the file (default: $XDG_CONFIG_HOME/dittovault/config.yaml)")
	force := fs.Bool("force", false, "Overwrite an existing file")
	_ = fs.Parse(args)

	if *path == "" {
		written, err := config.InitConfig(*force)
		if err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", written)
		return nil
	}

	if err := config.InitConfigToPath(*path, *force); err != nil {
		return err
	}
	fmt.Printf("Configuration written to %s\n", *path)
	return nil
}

// app holds everything built from a configuration.
type app struct {
	cfg     *config.Config
	metrics *config.MetricsResult
	index   metadata.Index
	store   content.BinaryStore
	engine  *vault.Engine
}

func (r *app) Close() {
	if r.index != nil {
		if err := r.index.Close(); err != nil {
			logger.Warn("Failed to close metadata index: %v", err)
		}
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			logger.Warn("Failed to close binary store: %v", err)
		}
	}
	_ = logger.Close()
}

func setup(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return nil, err
	}

	r := &app{cfg: cfg, metrics: config.InitializeMetrics(cfg)}

	r.index, err = config.CreateMetadataStore(ctx, &cfg.Metadata, r.metrics.Cache)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("metadata index: %w", err)
	}

	r.store, err = config.CreateContentStore(ctx, &cfg.Content, r.metrics.S3)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("binary store: %w", err)
	}

	r.engine, err = config.CreateEngine(&cfg.Vault, r.index, r.store, r.metrics.Vault)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("engine: %w", err)
	}

	logger.Info("DittoVault %s ready: content=%s metadata=%s", version, cfg.Content.Type, cfg.Metadata.Type)
	return r, nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to the config file")
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer r.Close()

	sweeper, err := config.CreateSweeper(&r.cfg.Sweep, r.engine, r.index, r.store, r.metrics.Sweep)
	if err != nil {
		return err
	}

	vs := server.New(r.cfg.Server.ShutdownTimeout)
	if err := vs.AddService(server.SweeperService(sweeper)); err != nil {
		return err
	}

	checks := map[string]metrics.HealthChecker{}
	if hc, ok := r.index.(metadata.HealthChecker); ok {
		checks["metadata"] = hc
	}
	if srv := config.CreateMetricsServer(r.cfg, version, checks); srv != nil {
		if err := vs.AddService(server.MetricsService(srv)); err != nil {
			return err
		}
	}

	logger.Info("Serving. Press Ctrl+C to stop.")

	if err := vs.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Stopped")
	return nil
}

func runPurge(args []string) error {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to the config file")
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer r.Close()

	report, err := r.engine.PurgeInactive(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Purged %d item(s)\n", report.Purged)
	for _, f := range report.Failures {
		fmt.Printf("  failed: %s\n", f)
	}
	if len(report.Failures) > 0 {
		return fmt.Errorf("%d item(s) could not be purged", len(report.Failures))
	}
	return nil
}

func runSweep(args []string) error {
	fs := flag.NewFlagSet("sweep", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to the config file")
	dryRun := fs.Bool("dry-run", false, "Report what would be removed without removing it")
	orphans := fs.Bool("orphans", false, "Reclaim orphaned binaries even if the config disables it")
	purge := fs.Bool("purge", false, "Purge trashed items even if the config disables it")
	_ = fs.Parse(args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, err := setup(ctx, *configPath)
	if err != nil {
		return err
	}
	defer r.Close()

	sweepCfg := r.cfg.Sweep
	sweepCfg.DryRun = sweepCfg.DryRun || *dryRun
	sweepCfg.Orphans = sweepCfg.Orphans || *orphans
	sweepCfg.PurgeInactive = sweepCfg.PurgeInactive || *purge
	if !sweepCfg.Orphans && !sweepCfg.PurgeInactive {
		return errors.New("nothing to do: enable -orphans or -purge, or set them in the sweep section")
	}

	sweeper, err := config.CreateSweeper(&sweepCfg, r.engine, r.index, r.store, r.metrics.Sweep)
	if err != nil {
		return err
	}

	stats, err := sweeper.RunNow(ctx)
	if stats != nil {
		fmt.Println(stats.Summary())
		if sweepCfg.DryRun {
			for _, p := range stats.Orphans {
				fmt.Printf("  would delete: %s\n", p)
			}
		}
	}
	return err
}
