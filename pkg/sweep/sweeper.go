// Package sweep runs the vault's background maintenance.
//
// A sweep has two phases, each optional:
//
//  1. Purge: permanently removes trashed items through the engine, binary
//     first, so a failed binary delete keeps its record for the next run.
//  2. Orphans: deletes binaries that no metadata record points to. These
//     are left behind when a create saga could not undo its binary write, or
//     when a process died between the two steps.
//
// A binary written by an in-flight AddItem is briefly unreferenced, so
// orphan candidates are re-checked after a grace period before deletion.
package sweep

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/internal/ratelimiter"
	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/marmos91/dittovault/pkg/vault"
)

const (
	DefaultInterval    = 24 * time.Hour
	DefaultRunTimeout  = 30 * time.Minute
	DefaultOrphanGrace = 5 * time.Minute
)

// Purger removes trashed items. *vault.Engine implements it.
type Purger interface {
	PurgeInactive(ctx context.Context) (*vault.PurgeReport, error)
}

// Metrics receives the outcome of each sweep. Nil disables reporting.
type Metrics interface {
	RecordSweep(stats *Stats, err error)
}

// Config controls the sweeper.
type Config struct {
	// Enabled starts the periodic worker on Start
	Enabled bool

	// Interval between periodic sweeps (default: 24h)
	Interval time.Duration

	// RunTimeout bounds one periodic sweep (default: 30m)
	RunTimeout time.Duration

	// PurgeInactive enables the purge phase
	PurgeInactive bool

	// Orphans enables the orphan binary phase
	Orphans bool

	// OrphanGrace is how long a candidate must stay unreferenced before it
	// is deleted. Zero re-checks immediately.
	OrphanGrace time.Duration

	// DryRun reports what would be deleted without deleting. The purge
	// phase is skipped entirely.
	DryRun bool

	// DeletesPerSecond throttles orphan deletes; zero is unlimited
	DeletesPerSecond float64
}

// Stats describes one sweep.
type Stats struct {
	StartTime time.Time
	EndTime   time.Time

	Purged        int
	PurgeFailures int

	ReferencedCount int
	ExistingCount   int
	OrphanedCount   int
	DeletedCount    int
	FailedCount     int

	// Orphans holds the candidates found, capped for logging
	Orphans []content.LogicalPath
}

const maxReportedOrphans = 100

// Duration returns how long the sweep took.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary is a single log line.
func (s *Stats) Summary() string {
	return fmt.Sprintf("purged=%d purge_failures=%d referenced=%d existing=%d orphaned=%d deleted=%d failed=%d duration=%s",
		s.Purged, s.PurgeFailures, s.ReferencedCount, s.ExistingCount,
		s.OrphanedCount, s.DeletedCount, s.FailedCount, s.Duration())
}

// Sweeper runs sweeps on demand and, once started, periodically.
//
// Thread Safety: Safe for concurrent use. Sweeps never overlap: a RunNow
// during a periodic sweep waits for it.
type Sweeper struct {
	purger  Purger
	index   metadata.Index
	store   content.BinaryStore
	lister  content.Lister
	cfg     Config
	limiter *ratelimiter.RateLimiter
	metrics Metrics

	runMu     sync.Mutex
	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// New returns a sweeper that is not yet started. The orphan phase requires
// a store implementing content.Lister.
func New(purger Purger, index metadata.Index, store content.BinaryStore, cfg Config, m Metrics) (*Sweeper, error) {
	if cfg.PurgeInactive && purger == nil {
		return nil, fmt.Errorf("sweep: purge phase needs a purger")
	}

	var lister content.Lister
	if cfg.Orphans {
		if index == nil || store == nil {
			return nil, fmt.Errorf("sweep: orphan phase needs an index and a binary store")
		}
		l, ok := store.(content.Lister)
		if !ok {
			return nil, fmt.Errorf("sweep: binary store %T cannot list its content", store)
		}
		lister = l
	}

	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = DefaultRunTimeout
	}
	if cfg.OrphanGrace < 0 {
		cfg.OrphanGrace = 0
	}

	return &Sweeper{
		purger:  purger,
		index:   index,
		store:   store,
		lister:  lister,
		cfg:     cfg,
		limiter: ratelimiter.New(cfg.DeletesPerSecond, 1),
		metrics: m,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}, nil
}

// Start launches the periodic worker. It is a no-op when disabled or
// already started.
func (s *Sweeper) Start() {
	if !s.cfg.Enabled {
		logger.Info("Sweeper disabled")
		return
	}
	s.startOnce.Do(func() {
		s.started.Store(true)
		logger.Info("Starting sweeper: interval=%s purge=%v orphans=%v dry_run=%v deletes_per_second=%g",
			s.cfg.Interval, s.cfg.PurgeInactive, s.cfg.Orphans, s.cfg.DryRun, s.cfg.DeletesPerSecond)
		go s.worker()
	})
}

// Stop signals the worker and waits for an in-progress sweep, bounded by
// ctx.
func (s *Sweeper) Stop(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}
	s.stopOnce.Do(func() { close(s.stopCh) })

	select {
	case <-s.doneCh:
		logger.Info("Sweeper stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Sweeper shutdown timeout")
		return ctx.Err()
	}
}

// RunNow performs one sweep and returns its statistics.
func (s *Sweeper) RunNow(ctx context.Context) (*Stats, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	stats, err := s.sweep(ctx)
	if s.metrics != nil {
		s.metrics.RecordSweep(stats, err)
	}
	return stats, err
}

func (s *Sweeper) worker() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
			go func() {
				select {
				case <-s.stopCh:
					cancel()
				case <-ctx.Done():
				}
			}()
			stats, err := s.RunNow(ctx)
			cancel()

			if err != nil {
				logger.Error("Sweep failed: %v", err)
			} else {
				logger.Info("Sweep completed: %s", stats.Summary())
			}

		case <-s.stopCh:
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	defer func() { stats.EndTime = time.Now() }()

	if s.cfg.PurgeInactive && !s.cfg.DryRun {
		report, err := s.purger.PurgeInactive(ctx)
		if err != nil {
			return stats, fmt.Errorf("purge phase: %w", err)
		}
		stats.Purged = report.Purged
		stats.PurgeFailures = len(report.Failures)
		for _, f := range report.Failures {
			logger.Warn("Sweep: could not purge %s", f)
		}
	}

	if s.cfg.Orphans {
		if err := s.sweepOrphans(ctx, stats); err != nil {
			return stats, fmt.Errorf("orphan phase: %w", err)
		}
	}
	return stats, nil
}

func (s *Sweeper) referenced(ctx context.Context) (map[content.LogicalPath]struct{}, error) {
	paths, err := s.index.LogicalPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list referenced content: %w", err)
	}
	set := make(map[content.LogicalPath]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set, nil
}

func (s *Sweeper) sweepOrphans(ctx context.Context, stats *Stats) error {
	referenced, err := s.referenced(ctx)
	if err != nil {
		return err
	}
	stats.ReferencedCount = len(referenced)

	existing, err := s.lister.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list content: %w", err)
	}
	stats.ExistingCount = len(existing)

	var candidates []content.LogicalPath
	for _, p := range existing {
		if _, ok := referenced[p]; !ok {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	if s.cfg.OrphanGrace > 0 {
		logger.Debug("Sweep: %d orphan candidates, re-checking in %s", len(candidates), s.cfg.OrphanGrace)
		timer := time.NewTimer(s.cfg.OrphanGrace)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	// Drop candidates that were claimed by a record meanwhile.
	referenced, err = s.referenced(ctx)
	if err != nil {
		return err
	}
	orphans := candidates[:0]
	for _, p := range candidates {
		if _, ok := referenced[p]; !ok {
			orphans = append(orphans, p)
		}
	}
	stats.OrphanedCount = len(orphans)
	stats.Orphans = orphans[:min(len(orphans), maxReportedOrphans)]

	if s.cfg.DryRun {
		logger.Info("Sweep: DRY RUN - would delete %d orphaned binaries", len(orphans))
		return nil
	}

	for _, p := range orphans {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := s.store.Delete(ctx, p); err != nil {
			logger.Warn("Sweep: failed to delete orphan %s: %v", p, err)
			stats.FailedCount++
			continue
		}
		stats.DeletedCount++
	}

	logger.Info("Sweep: deleted %d orphaned binaries, %d failed", stats.DeletedCount, stats.FailedCount)
	return nil
}
