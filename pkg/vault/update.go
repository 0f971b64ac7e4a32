package vault

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// UpdateField sets one whitelisted field: title, content, tags (comma
// separated) or activated (a boolean). Anything else is InvalidField.
func (e *Engine) UpdateField(ctx context.Context, who media.Identity, id, field, value string) (_ bool, err error) {
	defer e.observe("update_field", time.Now(), &err)

	f, err := media.ParseField(field)
	if err != nil {
		return false, err
	}

	var apply func(*media.Item)
	switch f {
	case media.FieldTitle:
		apply = func(it *media.Item) { it.Title = value }
	case media.FieldContent:
		apply = func(it *media.Item) { it.Content = value }
	case media.FieldTags:
		tags := media.SplitTags(value)
		apply = func(it *media.Item) { it.Tags = tags }
	case media.FieldActivated:
		active, perr := strconv.ParseBool(strings.TrimSpace(value))
		if perr != nil {
			return false, media.InvalidFieldError(field)
		}
		apply = func(it *media.Item) { it.Activated = active }
	default:
		return false, media.InvalidFieldError(field)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	_, err = e.index.Update(ctx, id, func(current *media.Item) error {
		if !e.policy.CanWrite(who, current) {
			return media.AccessDeniedError(id, "update")
		}
		apply(current)
		current.Touch(who.UserID, e.now())
		return media.Validate(current)
	})
	if err != nil {
		return false, indexError(id, err)
	}

	logger.Debug("Updated field %s of %s", f, id)
	return true, nil
}

// validatePatch checks what can be checked without the stored record.
func validatePatch(p media.Patch) error {
	if p.AccessScope != nil && !p.AccessScope.Valid() {
		return media.InvalidInputError("invalid access scope " + string(*p.AccessScope))
	}
	if p.Tags != nil {
		for _, t := range *p.Tags {
			if strings.TrimSpace(t) == "" {
				return media.InvalidInputError("tags cannot be empty")
			}
		}
	}
	for _, prop := range p.Props {
		if err := media.ValidateStruct(prop); err != nil {
			return err
		}
	}
	if p.Children != nil {
		for _, c := range *p.Children {
			if err := media.ValidateStruct(c); err != nil {
				return err
			}
		}
	}
	return nil
}

// UpdateItem merges the non-nil fields of patch into the item.
//
// Children replace the existing list wholesale; use AppendGalleryChildren to
// grow a gallery. Props are upserted by name. A featuredId that no longer
// names a child after the merge is dropped, unless the patch itself sets it,
// in which case it must name a child.
func (e *Engine) UpdateItem(ctx context.Context, who media.Identity, id string, patch media.Patch) (_ *media.Item, err error) {
	defer e.observe("update_item", time.Now(), &err)

	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	if patch.Empty() {
		item, err := e.index.Get(ctx, id)
		if err != nil {
			return nil, indexError(id, err)
		}
		if !e.policy.CanWrite(who, item) {
			return nil, media.AccessDeniedError(id, "update")
		}
		return item, nil
	}

	updated, err := e.index.Update(ctx, id, func(current *media.Item) error {
		if !e.policy.CanWrite(who, current) {
			return media.AccessDeniedError(id, "update")
		}
		return e.applyPatch(current, patch, who)
	})
	if err != nil {
		return nil, indexError(id, err)
	}

	logger.Debug("Updated item %s", id)
	return updated, nil
}

func (e *Engine) applyPatch(item *media.Item, p media.Patch, who media.Identity) error {
	if p.Title != nil {
		item.Title = *p.Title
	}
	if p.Content != nil {
		item.Content = *p.Content
	}
	if p.Filename != nil {
		item.Filename = *p.Filename
	}
	if p.MimeType != nil {
		item.MimeType = *p.MimeType
	}
	if p.Tags != nil {
		item.Tags = slices.Clone(*p.Tags)
	}
	if p.AccessScope != nil {
		item.AccessScope = *p.AccessScope
	}
	for _, prop := range p.Props {
		item.Props = media.UpsertProp(item.Props, prop)
	}

	if p.Children != nil {
		switch item.Module {
		case media.ModuleGallery:
			item.Children = slices.Clone(*p.Children)
		case media.ModuleFile, media.ModuleReference:
			return media.InvalidInputError("only galleries have children")
		default:
			return media.InvalidInputError("unknown module " + string(item.Module))
		}
	}

	if item.Module == media.ModuleGallery {
		if fid, ok := featuredInPatch(p); ok {
			if err := e.composer.ValidateFeatured(item.Children, fid); err != nil {
				return err
			}
		} else if p.Children != nil {
			item.Props = e.composer.PruneFeatured(item.Props, item.Children)
		}
	}

	item.Touch(who.UserID, e.now())
	return media.Validate(item)
}

func featuredInPatch(p media.Patch) (string, bool) {
	for _, prop := range p.Props {
		if prop.Name == media.PropFeaturedID {
			return prop.TextValue, true
		}
	}
	return "", false
}

// TrashItem marks an item inactive. Trashing a trashed item is a no-op.
// The binary is kept until PurgeInactive.
func (e *Engine) TrashItem(ctx context.Context, who media.Identity, id string) (err error) {
	defer e.observe("trash_item", time.Now(), &err)
	return e.setStatus(ctx, who, id, false)
}

// RestoreItem reactivates a trashed item. Restoring an active item is a
// no-op.
func (e *Engine) RestoreItem(ctx context.Context, who media.Identity, id string) (err error) {
	defer e.observe("restore_item", time.Now(), &err)
	return e.setStatus(ctx, who, id, true)
}

func (e *Engine) setStatus(ctx context.Context, who media.Identity, id string, active bool) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	item, err := e.index.Get(ctx, id)
	if err != nil {
		return indexError(id, err)
	}
	if !e.policy.CanWrite(who, item) {
		return media.AccessDeniedError(id, "update status")
	}
	if item.Activated == active {
		return nil
	}
	change := metadata.StatusChange{Active: active, ModifiedBy: who.UserID, ModifiedAt: e.now()}
	if err := e.index.UpdateStatus(ctx, id, change); err != nil {
		return indexError(id, err)
	}

	logger.Debug("Set activated=%v on %s", active, id)
	return nil
}
