// Package vault implements the coordination engine of the media vault.
//
// The engine keeps a metadata index and a binary store consistent without a
// shared transaction. Every multi-step operation is an ordered sequence of
// compensable steps:
//
//   - create: binary first, then metadata. A failed metadata write deletes
//     the binary it just wrote.
//   - purge: binary first, then metadata. A failed binary delete leaves the
//     record inactive and reports it.
//
// The worst case is therefore an orphaned binary, which pkg/sweep reclaims,
// and never a record pointing at nothing.
//
// Access is checked with a policy.Evaluator before any store write. The
// engine holds no per-call state and is safe for concurrent use.
package vault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/gallery"
	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/policy"
	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// Metrics receives engine events. A nil Metrics in Config disables
// reporting.
type Metrics interface {
	// RecordOperation records a completed engine operation.
	RecordOperation(operation string, duration time.Duration, err error)

	// RecordCompensation records an undo step and whether it succeeded.
	RecordCompensation(operation string, err error)

	// RecordInconsistency records a detected disagreement between the stores.
	RecordInconsistency(operation string)

	// RecordPurge records the outcome of a purge run.
	RecordPurge(purged, failed int)
}

type noopMetrics struct{}

func (noopMetrics) RecordOperation(string, time.Duration, error) {}
func (noopMetrics) RecordCompensation(string, error)             {}
func (noopMetrics) RecordInconsistency(string)                   {}
func (noopMetrics) RecordPurge(int, int)                         {}

// Config wires an Engine to its collaborators.
type Config struct {
	Index   metadata.Index
	Content content.BinaryStore
	Policy  policy.Evaluator

	// OperationTimeout bounds the store calls of one engine operation.
	// Zero leaves the caller's context alone.
	OperationTimeout time.Duration

	// DefaultSearchSize and MaxSearchSize override the index defaults.
	DefaultSearchSize int
	MaxSearchSize     int

	Metrics Metrics

	// Now and NewID are replaceable in tests.
	Now   func() time.Time
	NewID func() string
}

// Engine is the vault coordination engine.
type Engine struct {
	index    metadata.Index
	content  content.BinaryStore
	policy   policy.Evaluator
	composer gallery.Composer
	metrics  Metrics

	timeout     time.Duration
	defaultSize int
	maxSize     int

	now   func() time.Time
	newID func() string
}

// New validates cfg and returns an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Index == nil {
		return nil, fmt.Errorf("vault: metadata index is required")
	}
	if cfg.Content == nil {
		return nil, fmt.Errorf("vault: binary store is required")
	}
	if cfg.OperationTimeout < 0 {
		return nil, fmt.Errorf("vault: operation timeout cannot be negative")
	}

	e := &Engine{
		index:       cfg.Index,
		content:     cfg.Content,
		policy:      cfg.Policy,
		metrics:     cfg.Metrics,
		timeout:     cfg.OperationTimeout,
		defaultSize: cfg.DefaultSearchSize,
		maxSize:     cfg.MaxSearchSize,
		now:         cfg.Now,
		newID:       cfg.NewID,
	}
	if e.metrics == nil {
		e.metrics = noopMetrics{}
	}
	if e.defaultSize <= 0 {
		e.defaultSize = metadata.DefaultSearchSize
	}
	if e.maxSize <= 0 || e.maxSize > metadata.MaxSearchSize {
		e.maxSize = metadata.MaxSearchSize
	}
	if e.defaultSize > e.maxSize {
		e.defaultSize = e.maxSize
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e, nil
}

// withTimeout applies the configured operation timeout to ctx.
func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// observe is deferred by every public operation.
func (e *Engine) observe(operation string, start time.Time, errp *error) {
	var err error
	if errp != nil {
		err = *errp
	}
	e.metrics.RecordOperation(operation, time.Since(start), err)
}

// indexError maps a metadata index failure onto the vault taxonomy. Errors
// that already carry a vault code (returned from Update callbacks) pass
// through unchanged.
func indexError(id string, err error) error {
	var verr *media.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &verr):
		return err
	case errors.Is(err, metadata.ErrRecordNotFound):
		return media.NotFoundError(id)
	case errors.Is(err, metadata.ErrInvalidRecord):
		return &media.Error{Code: media.CodeInvalidInput, Message: "record rejected by index", ID: id, Err: err}
	default:
		return media.UnavailableError(id, "metadata index failed", err)
	}
}

// contentError maps a binary store failure. A missing payload is not mapped
// here: what it means depends on the caller.
func contentError(id string, err error) error {
	var verr *media.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &verr):
		return err
	case errors.Is(err, content.ErrInvalidPath):
		return media.InconsistencyError(id, "stored logical path is invalid", err)
	default:
		return media.UnavailableError(id, "binary store failed", err)
	}
}

// inconsistent logs and counts a store disagreement, then returns it.
func (e *Engine) inconsistent(operation, id, msg string, cause error) error {
	logger.Error("Store inconsistency in %s for %s: %s: %v", operation, id, msg, cause)
	e.metrics.RecordInconsistency(operation)
	return media.InconsistencyError(id, msg, cause)
}

// cancelOnClose releases an operation context once the caller is done
// reading the payload.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
