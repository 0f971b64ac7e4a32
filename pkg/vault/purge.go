package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// PurgeFailure describes an inactive item that could not be purged. The
// item stays in the index, inactive, and is retried by the next purge.
type PurgeFailure struct {
	ID     string
	Module media.Module
	Err    error
}

func (f PurgeFailure) String() string {
	return fmt.Sprintf("%s (%s): %v", f.ID, f.Module, f.Err)
}

// PurgeReport is the outcome of PurgeInactive.
type PurgeReport struct {
	// Purged counts items whose record (and binary, for FILE) was removed
	Purged int

	// Failures lists items left in place
	Failures []PurgeFailure
}

// PurgeInactive permanently removes every trashed item.
//
// For FILE items the binary is deleted first and the record second, so that
// a failed binary delete leaves the record inactive instead of orphaning a
// binary nothing points to. Failures are reported, not retried. A binary
// that is already gone does not block the purge of its record.
//
// This is a maintenance operation without a caller identity.
func (e *Engine) PurgeInactive(ctx context.Context) (_ *PurgeReport, err error) {
	defer e.observe("purge_inactive", time.Now(), &err)

	report := &PurgeReport{}

	listCtx, cancel := e.withTimeout(ctx)
	inactive, err := e.index.ListInactive(listCtx, metadata.Visibility{All: true})
	cancel()
	if err != nil {
		return nil, indexError("", err)
	}

	for _, item := range inactive {
		if err := ctx.Err(); err != nil {
			e.metrics.RecordPurge(report.Purged, len(report.Failures))
			return report, err
		}

		purged, err := e.purgeOne(ctx, item)
		if err != nil {
			logger.Warn("Purge of %s failed: %v", item.ID, err)
			report.Failures = append(report.Failures, PurgeFailure{ID: item.ID, Module: item.Module, Err: err})
			continue
		}
		if purged {
			report.Purged++
		}
	}

	e.metrics.RecordPurge(report.Purged, len(report.Failures))
	if report.Purged > 0 || len(report.Failures) > 0 {
		logger.Info("Purged %d inactive items (%d failures)", report.Purged, len(report.Failures))
	}
	return report, nil
}

// purgeOne removes a single inactive item. It reports false when the item
// was removed or restored concurrently.
func (e *Engine) purgeOne(ctx context.Context, item *media.Item) (bool, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	// Skip items restored or purged since the listing.
	current, err := e.getFresh(ctx, item.ID)
	if err != nil {
		if errors.Is(err, metadata.ErrRecordNotFound) {
			return false, nil
		}
		return false, indexError(item.ID, err)
	}
	if current.Activated {
		return false, nil
	}
	item = current

	switch item.Module {
	case media.ModuleFile:
		if item.LogicalPath != "" {
			existed, err := e.content.Delete(ctx, content.LogicalPath(item.LogicalPath))
			if err != nil {
				return false, contentError(item.ID, err)
			}
			if !existed {
				logger.Warn("Binary %s of inactive item %s was already gone", item.LogicalPath, item.ID)
			}
		}
	case media.ModuleGallery, media.ModuleReference:
	default:
		return false, &media.Error{Code: media.CodeInvalidInput, Message: "unknown module " + string(item.Module), ID: item.ID}
	}

	// A restore between the check and here keeps the record; its binary
	// is then gone and GetItem reports the inconsistency.
	deleted, err := e.index.DeleteInactiveByID(ctx, item.ID)
	if err != nil {
		return false, indexError(item.ID, err)
	}
	if !deleted {
		logger.Warn("Inactive item %s was restored or removed during purge", item.ID)
	}
	return deleted, nil
}

// getFresh reads id past any cache in front of the index.
func (e *Engine) getFresh(ctx context.Context, id string) (*media.Item, error) {
	if fg, ok := e.index.(metadata.FreshGetter); ok {
		return fg.GetFresh(ctx, id)
	}
	return e.index.Get(ctx, id)
}
