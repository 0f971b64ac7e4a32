package vault

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/store/content"
)

// InlineFile is a file uploaded together with a gallery operation.
type InlineFile struct {
	Title    string
	Content  string
	Filename string
	MimeType string
	Tags     []string
	Props    []media.Prop
	Payload  io.Reader `validate:"required"`
}

// GalleryInput describes a new gallery and its inline uploads.
type GalleryInput struct {
	Title       string            `validate:"required,max=1024"`
	Content     string
	AccessScope media.AccessScope `validate:"omitempty,oneof=PUBLIC PRIVATE"`
	Tags        []string          `validate:"dive,required"`
	Props       []media.Prop      `validate:"dive"`
	Files       []InlineFile      `validate:"dive"`
}

// titled is validated for top-level adds of FILE and GALLERY items.
type titled struct {
	Title string `validate:"required"`
}

// AddItem creates an item and, when payload is non-nil, stores its binary.
//
// A payload makes the item a FILE unless a module was given; REFERENCE
// items cannot carry one. Caller-supplied id, audit fields, size and logical
// path are ignored. The caller owns the new item.
func (e *Engine) AddItem(ctx context.Context, who media.Identity, item *media.Item, payload io.Reader) (_ *media.Item, err error) {
	defer e.observe("add_item", time.Now(), &err)

	if !e.policy.CanCreate(who) {
		return nil, media.AccessDeniedError("", "add")
	}
	if item == nil {
		return nil, media.InvalidInputError("item is required")
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	return e.addItem(ctx, who, item.Clone(), payload, true)
}

// addItem runs the create saga on an item the engine owns.
func (e *Engine) addItem(ctx context.Context, who media.Identity, item *media.Item, payload io.Reader, topLevel bool) (*media.Item, error) {
	if payload != nil && item.Module == "" {
		item.Module = media.ModuleFile
	}

	switch item.Module {
	case media.ModuleFile:
		if payload == nil {
			return nil, media.InvalidInputError("FILE items require a payload")
		}
	case media.ModuleGallery:
		if payload != nil {
			return nil, media.InvalidInputError("GALLERY items cannot carry a payload")
		}
	case media.ModuleReference:
		if payload != nil {
			return nil, media.InvalidInputError("REFERENCE items cannot carry a payload")
		}
	case "":
		return nil, media.InvalidInputError("module is required")
	default:
		return nil, media.InvalidInputError("unknown module " + string(item.Module))
	}

	if topLevel && item.Module != media.ModuleReference {
		if err := media.ValidateStruct(titled{Title: strings.TrimSpace(item.Title)}); err != nil {
			return nil, err
		}
	}

	now := e.now()
	item.ID = e.newID()
	item.Activated = true
	item.CreatedBy = who.UserID
	item.CreationDate = now
	item.Touch(who.UserID, now)
	item.Size = 0
	item.LogicalPath = ""
	if item.AccessScope == "" {
		item.AccessScope = media.ScopePrivate
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	if item.Props == nil {
		item.Props = []media.Prop{}
	}
	if item.Children == nil {
		item.Children = []media.Child{}
	}
	if item.Module == media.ModuleGallery {
		if fid, ok := item.FeaturedID(); ok {
			if err := e.composer.ValidateFeatured(item.Children, fid); err != nil {
				return nil, err
			}
		}
	} else if len(item.Children) > 0 {
		return nil, media.InvalidInputError("only galleries have children")
	}

	if err := media.Validate(item); err != nil {
		return nil, err
	}

	if !item.Module.OwnsContent() {
		saved, err := e.index.Save(ctx, item)
		if err != nil {
			return nil, indexError(item.ID, err)
		}
		logger.Debug("Added %s item %s", item.Module, item.ID)
		return saved, nil
	}

	// Binary first: a record is never written without a payload behind it.
	path, size, err := e.content.Put(ctx, item.ID, payload)
	if err != nil {
		return nil, contentError(item.ID, err)
	}
	item.LogicalPath = string(path)
	item.Size = size

	saved, err := e.index.Save(ctx, item)
	if err != nil {
		cause := indexError(item.ID, err)
		if cerr := e.deleteBinary(ctx, "add_item", path); cerr != nil {
			return nil, e.inconsistent("add_item", item.ID, "metadata write failed and binary is orphaned", errors.Join(cause, cerr))
		}
		return nil, e.inconsistent("add_item", item.ID, "metadata write failed, binary removed", cause)
	}

	logger.Debug("Added FILE item %s (%d bytes at %s)", item.ID, size, path)
	return saved, nil
}

// AddGallery stores each inline file as a FILE item, then saves a gallery
// whose children are those files. If any step fails, the files already
// stored are removed again.
func (e *Engine) AddGallery(ctx context.Context, who media.Identity, in GalleryInput) (_ *media.Item, err error) {
	defer e.observe("add_gallery", time.Now(), &err)

	if !e.policy.CanCreate(who) {
		return nil, media.AccessDeniedError("", "add")
	}
	if err := media.ValidateStruct(in); err != nil {
		return nil, err
	}
	if err := media.ValidateStruct(titled{Title: strings.TrimSpace(in.Title)}); err != nil {
		return nil, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	scope := in.AccessScope
	if scope == "" {
		scope = media.ScopePrivate
	}

	files, err := e.storeFiles(ctx, who, in.Files, scope)
	if err != nil {
		return nil, err
	}

	g := &media.Item{
		Module:      media.ModuleGallery,
		Title:       in.Title,
		Content:     in.Content,
		AccessScope: scope,
		Tags:        slices.Clone(in.Tags),
		Props:       slices.Clone(in.Props),
		Children:    e.composer.Owned(files),
	}
	saved, err := e.addItem(ctx, who, g, nil, true)
	if err != nil {
		return nil, e.undoFiles(ctx, "add_gallery", files, err)
	}

	logger.Info("Added gallery %s with %d files", saved.ID, len(files))
	return saved, nil
}

// storeFiles adds every inline file as an independent FILE item. On failure
// the files stored so far are removed and the error is returned.
func (e *Engine) storeFiles(ctx context.Context, who media.Identity, files []InlineFile, scope media.AccessScope) ([]*media.Item, error) {
	stored := make([]*media.Item, 0, len(files))
	for _, f := range files {
		item := &media.Item{
			Module:      media.ModuleFile,
			Title:       f.Title,
			Content:     f.Content,
			Filename:    f.Filename,
			MimeType:    f.MimeType,
			AccessScope: scope,
			Tags:        slices.Clone(f.Tags),
			Props:       slices.Clone(f.Props),
		}
		saved, err := e.addItem(ctx, who, item, f.Payload, false)
		if err != nil {
			return nil, e.undoFiles(ctx, "store_files", stored, err)
		}
		stored = append(stored, saved)
	}
	return stored, nil
}

// undoFiles removes fully created FILE items after a later step failed.
// It returns cause, or a StoreInconsistency when an item could not be
// removed.
func (e *Engine) undoFiles(ctx context.Context, operation string, files []*media.Item, cause error) error {
	ctx, cancel := cleanupContext(ctx)
	defer cancel()

	var failed []error
	for _, f := range files {
		if err := e.removeItem(ctx, operation, f); err != nil {
			failed = append(failed, err)
		}
	}
	if len(failed) > 0 {
		return e.inconsistent(operation, "", "could not undo stored files", errors.Join(append([]error{cause}, failed...)...))
	}
	return cause
}

// removeItem deletes a record and then its binary, so an interruption
// leaves at worst an orphaned binary.
func (e *Engine) removeItem(ctx context.Context, operation string, item *media.Item) error {
	if _, err := e.index.DeleteByID(ctx, item.ID); err != nil {
		e.metrics.RecordCompensation(operation, err)
		return indexError(item.ID, err)
	}
	if item.LogicalPath == "" {
		e.metrics.RecordCompensation(operation, nil)
		return nil
	}
	return e.deleteBinary(ctx, operation, content.LogicalPath(item.LogicalPath))
}

// deleteBinary is a compensation step.
func (e *Engine) deleteBinary(ctx context.Context, operation string, path content.LogicalPath) error {
	ctx, cancel := cleanupContext(ctx)
	defer cancel()

	_, err := e.content.Delete(ctx, path)
	e.metrics.RecordCompensation(operation, err)
	if err != nil {
		logger.Warn("Compensating delete of %s failed: %v", path, err)
		return contentError("", err)
	}
	logger.Warn("Compensated %s: removed binary %s", operation, path)
	return nil
}

const compensationTimeout = 30 * time.Second

// cleanupContext returns ctx, or a detached context bounded by
// compensationTimeout when ctx is already done, so that a timed-out
// operation can still undo its writes.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return ctx, func() {}
	}
	return context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
}
