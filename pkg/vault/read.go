package vault

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// GetOptions controls GetItem.
type GetOptions struct {
	// IncludeInactive returns trashed items instead of NotFound
	IncludeInactive bool

	// WithPayload opens the binary of FILE items
	WithPayload bool
}

// ItemWithPayload is the result of GetItem. Payload is nil unless the item
// is a FILE and WithPayload was requested; the caller must close it.
type ItemWithPayload struct {
	Item    *media.Item
	Payload io.ReadCloser
}

// GetItem returns an item the caller may read.
//
// A FILE record whose binary is missing is reported as StoreInconsistency,
// not NotFound.
func (e *Engine) GetItem(ctx context.Context, who media.Identity, id string, opts GetOptions) (_ *ItemWithPayload, err error) {
	defer e.observe("get_item", time.Now(), &err)

	ctx, cancel := e.withTimeout(ctx)
	keepCtx := false
	defer func() {
		if !keepCtx {
			cancel()
		}
	}()

	item, err := e.index.Get(ctx, id)
	if err != nil {
		return nil, indexError(id, err)
	}
	if !item.Activated && !opts.IncludeInactive {
		return nil, media.NotFoundError(id)
	}
	if !e.policy.CanRead(who, item) {
		return nil, media.AccessDeniedError(id, "read")
	}

	result := &ItemWithPayload{Item: item}
	if !opts.WithPayload {
		return result, nil
	}

	switch item.Module {
	case media.ModuleFile:
		if item.LogicalPath == "" {
			return nil, e.inconsistent("get_item", id, "FILE record has no logical path", nil)
		}
		rc, err := e.content.Get(ctx, content.LogicalPath(item.LogicalPath))
		if err != nil {
			if errors.Is(err, content.ErrContentNotFound) {
				return nil, e.inconsistent("get_item", id, "binary missing for FILE record", err)
			}
			return nil, contentError(id, err)
		}
		// The operation context now lives as long as the payload.
		keepCtx = true
		result.Payload = &cancelOnClose{ReadCloser: rc, cancel: cancel}
	case media.ModuleGallery, media.ModuleReference:
	default:
		return nil, &media.Error{Code: media.CodeInvalidInput, Message: "unknown module " + string(item.Module), ID: id}
	}
	return result, nil
}

// SearchItems returns active items matching query that the caller may read.
// Visibility is applied by the index before the size limit. size <= 0 uses
// the default; larger sizes are capped.
func (e *Engine) SearchItems(ctx context.Context, who media.Identity, query string, size int) (_ []*media.Item, err error) {
	defer e.observe("search_items", time.Now(), &err)

	vis := e.policy.Visibility(who)
	if vis.None() {
		return nil, media.AccessDeniedError("", "search")
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	items, err := e.index.Search(ctx, metadata.Query{
		Text:       strings.TrimSpace(query),
		Size:       e.searchSize(size),
		ActiveOnly: true,
		Visibility: vis,
	})
	if err != nil {
		return nil, indexError("", err)
	}
	return items, nil
}

func (e *Engine) searchSize(size int) int {
	switch {
	case size <= 0:
		return e.defaultSize
	case size > e.maxSize:
		return e.maxSize
	default:
		return size
	}
}

// ListTrash returns trashed items: all of them for admins, the caller's own
// for users.
func (e *Engine) ListTrash(ctx context.Context, who media.Identity) (_ []*media.Item, err error) {
	defer e.observe("list_trash", time.Now(), &err)

	vis := e.policy.TrashVisibility(who)
	if vis.None() {
		return nil, media.AccessDeniedError("", "list trash")
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	items, err := e.index.ListInactive(ctx, vis)
	if err != nil {
		return nil, indexError("", err)
	}
	return items, nil
}
