// Package gallery builds and mutates the child list of gallery items.
//
// Every function is pure: inputs are never modified and outputs never share
// backing arrays with them.
package gallery

import (
	"slices"

	"github.com/marmos91/dittovault/pkg/media"
)

// Composer groups the gallery composition rules. It carries no state; the
// zero value is ready to use.
type Composer struct{}

// Owned turns freshly uploaded files into FILE children.
func (Composer) Owned(files []*media.Item) []media.Child {
	return childrenOf(files, media.ModuleFile)
}

// References turns existing items into REFERENCE children.
func (Composer) References(files []*media.Item) []media.Child {
	return childrenOf(files, media.ModuleReference)
}

func childrenOf(files []*media.Item, module media.Module) []media.Child {
	out := make([]media.Child, 0, len(files))
	for _, f := range files {
		out = append(out, media.Child{
			ID:        f.ID,
			Module:    module,
			MimeType:  f.MimeType,
			Activated: f.Activated,
		})
	}
	return out
}

// Merge appends children to existing, preserving order.
func (Composer) Merge(existing, appended []media.Child) []media.Child {
	out := make([]media.Child, 0, len(existing)+len(appended))
	out = append(out, existing...)
	return append(out, appended...)
}

// ValidateFeatured fails with InvalidFeaturedReference unless featuredID
// names one of children.
func (Composer) ValidateFeatured(children []media.Child, featuredID string) error {
	if featuredID == "" || !containsChild(children, featuredID) {
		return media.InvalidFeaturedError(featuredID)
	}
	return nil
}

// SetFeatured replaces or appends the featuredId prop.
func (Composer) SetFeatured(props []media.Prop, featuredID string) []media.Prop {
	return media.UpsertProp(props, media.Prop{Name: media.PropFeaturedID, TextValue: featuredID})
}

// PruneFeatured drops a featuredId prop that no longer names a child.
func (Composer) PruneFeatured(props []media.Prop, children []media.Child) []media.Prop {
	return slices.DeleteFunc(slices.Clone(props), func(p media.Prop) bool {
		return p.Name == media.PropFeaturedID && !containsChild(children, p.TextValue)
	})
}

// CloneChildren converts children into REFERENCE children with the same ids.
func (Composer) CloneChildren(children []media.Child) []media.Child {
	out := make([]media.Child, len(children))
	for i, c := range children {
		c.Module = media.ModuleReference
		out[i] = c
	}
	return out
}

func containsChild(children []media.Child, id string) bool {
	return slices.ContainsFunc(children, func(c media.Child) bool { return c.ID == id })
}
