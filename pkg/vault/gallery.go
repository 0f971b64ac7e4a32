package vault

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/media"
)

// loadGallery fetches an active gallery.
func (e *Engine) loadGallery(ctx context.Context, id string) (*media.Item, error) {
	g, err := e.index.Get(ctx, id)
	if err != nil {
		return nil, indexError(id, err)
	}
	if !g.Activated {
		return nil, media.NotFoundError(id)
	}
	switch g.Module {
	case media.ModuleGallery:
		return g, nil
	case media.ModuleFile, media.ModuleReference:
		return nil, &media.Error{Code: media.CodeInvalidInput, Message: "item is not a gallery", ID: id}
	default:
		return nil, &media.Error{Code: media.CodeInvalidInput, Message: "unknown module " + string(g.Module), ID: id}
	}
}

// AppendGalleryChildren stores files as independent FILE items, appends a
// REFERENCE to each of them to the gallery, and optionally sets the featured
// child. Existing children keep their order and type.
//
// The caller must own the gallery, be an admin, or the gallery must be
// public. Returns (nil, nil) when neither files nor featuredID are given.
//
// The append is applied with the index's read-modify-write Update, so its
// atomicity is that of the index: concurrent appends to one gallery are safe
// on indexes that serialize Update and may lose one append otherwise.
func (e *Engine) AppendGalleryChildren(ctx context.Context, who media.Identity, galleryID string, files []InlineFile, featuredID *string) (_ *media.Item, err error) {
	defer e.observe("append_gallery_children", time.Now(), &err)

	if len(files) == 0 && featuredID == nil {
		return nil, nil
	}
	for _, f := range files {
		if err := media.ValidateStruct(f); err != nil {
			return nil, err
		}
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	g, err := e.loadGallery(ctx, galleryID)
	if err != nil {
		return nil, err
	}
	if !e.policy.CanWrite(who, g) {
		return nil, media.AccessDeniedError(galleryID, "append")
	}

	// Without uploads the featured id can be checked before any write.
	if featuredID != nil && len(files) == 0 {
		if err := e.composer.ValidateFeatured(g.Children, *featuredID); err != nil {
			return nil, err
		}
	}

	stored, err := e.storeFiles(ctx, who, files, g.AccessScope)
	if err != nil {
		return nil, err
	}
	refs := e.composer.References(stored)

	if featuredID != nil {
		if err := e.composer.ValidateFeatured(e.composer.Merge(g.Children, refs), *featuredID); err != nil {
			return nil, e.undoFiles(ctx, "append_gallery_children", stored, err)
		}
	}

	updated, err := e.index.Update(ctx, galleryID, func(current *media.Item) error {
		if !current.Activated || current.Module != media.ModuleGallery {
			return media.NotFoundError(galleryID)
		}
		current.Children = e.composer.Merge(current.Children, refs)
		if featuredID != nil {
			if err := e.composer.ValidateFeatured(current.Children, *featuredID); err != nil {
				return err
			}
			current.Props = e.composer.SetFeatured(current.Props, *featuredID)
		}
		current.Touch(who.UserID, e.now())
		return media.Validate(current)
	})
	if err != nil {
		return nil, e.undoFiles(ctx, "append_gallery_children", stored, indexError(galleryID, err))
	}

	logger.Debug("Appended %d children to gallery %s", len(refs), galleryID)
	return updated, nil
}

// CloneGallery creates a gallery owned by the caller whose children are
// REFERENCE copies of the source's children. No binaries are copied. An
// empty newTitle keeps the source title.
func (e *Engine) CloneGallery(ctx context.Context, who media.Identity, sourceID, newTitle string) (_ *media.Item, err error) {
	defer e.observe("clone_gallery", time.Now(), &err)

	if !e.policy.CanCreate(who) {
		return nil, media.AccessDeniedError(sourceID, "clone")
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	src, err := e.loadGallery(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if !e.policy.CanRead(who, src) {
		return nil, media.AccessDeniedError(sourceID, "clone")
	}

	title := strings.TrimSpace(newTitle)
	if title == "" {
		title = src.Title
	}

	clone := &media.Item{
		Module:      media.ModuleGallery,
		Title:       title,
		Content:     src.Content,
		AccessScope: src.AccessScope,
		Tags:        slices.Clone(src.Tags),
		Props:       slices.Clone(src.Props),
		Children:    e.composer.CloneChildren(src.Children),
	}
	saved, err := e.addItem(ctx, who, clone, nil, true)
	if err != nil {
		return nil, err
	}

	logger.Debug("Cloned gallery %s into %s", sourceID, saved.ID)
	return saved, nil
}
