// Package media defines the records stored by the vault and the errors its
// operations return.
//
// An Item is the unit of storage. FILE items own binary content kept in a
// content store, GALLERY items group children, and REFERENCE items point at
// content owned by another item. Every item carries audit fields, ordered
// tags, ordered props and (for galleries) ordered children.
package media

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Module is the closed set of item kinds.
type Module string

const (
	ModuleFile      Module = "FILE"
	ModuleGallery   Module = "GALLERY"
	ModuleReference Module = "REFERENCE"
)

// Modules lists every valid module in declaration order.
var Modules = []Module{ModuleFile, ModuleGallery, ModuleReference}

// Valid reports whether m is one of the known modules.
func (m Module) Valid() bool {
	switch m {
	case ModuleFile, ModuleGallery, ModuleReference:
		return true
	default:
		return false
	}
}

// OwnsContent reports whether items of this module carry a binary payload.
func (m Module) OwnsContent() bool {
	return m == ModuleFile
}

// ParseModule converts a case-insensitive name to a Module.
func ParseModule(s string) (Module, error) {
	m := Module(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", InvalidInputError(fmt.Sprintf("unknown module %q", s))
	}
	return m, nil
}

// AccessScope controls who besides the owner may read an item.
type AccessScope string

const (
	ScopePublic  AccessScope = "PUBLIC"
	ScopePrivate AccessScope = "PRIVATE"
)

// Valid reports whether s is a known scope.
func (s AccessScope) Valid() bool {
	return s == ScopePublic || s == ScopePrivate
}

// PropFeaturedID names the gallery prop that designates the featured child.
const PropFeaturedID = "featuredId"

// Prop is a named text attribute. Props keep insertion order.
type Prop struct {
	Name      string `json:"name" validate:"required"`
	TextValue string `json:"textValue"`
}

// Child is a gallery entry. It is a snapshot of the child item taken when the
// entry was added.
type Child struct {
	ID        string `json:"id" validate:"required"`
	Module    Module `json:"module" validate:"required,oneof=FILE REFERENCE"`
	MimeType  string `json:"mimeType,omitempty"`
	Activated bool   `json:"activated"`
}

// Item is the persisted metadata record.
type Item struct {
	ID               string      `json:"id"`
	Filename         string      `json:"filename,omitempty"`
	MimeType         string      `json:"mimeType,omitempty"`
	Size             int64       `json:"size"`
	Module           Module      `json:"module" validate:"required,oneof=FILE GALLERY REFERENCE"`
	Title            string      `json:"title,omitempty" validate:"max=1024"`
	Content          string      `json:"content,omitempty"`
	Activated        bool        `json:"activated"`
	LogicalPath      string      `json:"logicalPath,omitempty"`
	CreationDate     time.Time   `json:"creationDate"`
	CreatedBy        string      `json:"createdBy,omitempty"`
	ModificationDate time.Time   `json:"modificationDate"`
	ModifiedBy       string      `json:"modifiedBy,omitempty"`
	Tags             []string    `json:"tags" validate:"dive,required"`
	Props            []Prop      `json:"props" validate:"dive"`
	Children         []Child     `json:"children" validate:"dive"`
	AccessScope      AccessScope `json:"accessScope" validate:"omitempty,oneof=PUBLIC PRIVATE"`
}

// Clone returns a deep copy of the item. Callers can mutate the copy without
// affecting the original.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	c := *i
	c.Tags = slices.Clone(i.Tags)
	c.Props = slices.Clone(i.Props)
	c.Children = slices.Clone(i.Children)
	return &c
}

// Prop returns the value of the named prop.
func (i *Item) Prop(name string) (string, bool) {
	for _, p := range i.Props {
		if p.Name == name {
			return p.TextValue, true
		}
	}
	return "", false
}

// FeaturedID returns the featured child id of a gallery, if set.
func (i *Item) FeaturedID() (string, bool) {
	return i.Prop(PropFeaturedID)
}

// HasChild reports whether id is among the item's children.
func (i *Item) HasChild(id string) bool {
	for _, c := range i.Children {
		if c.ID == id {
			return true
		}
	}
	return false
}

// IsPublic reports whether the item is readable by any user.
func (i *Item) IsPublic() bool {
	return i.AccessScope == ScopePublic
}

// Touch stamps the modification audit fields.
func (i *Item) Touch(by string, at time.Time) {
	i.ModifiedBy = by
	i.ModificationDate = at
}

// Field is a single-field update target.
type Field string

const (
	FieldTitle     Field = "title"
	FieldContent   Field = "content"
	FieldTags      Field = "tags"
	FieldActivated Field = "activated"
)

// ParseField accepts only the whitelisted field names.
func ParseField(s string) (Field, error) {
	switch f := Field(s); f {
	case FieldTitle, FieldContent, FieldTags, FieldActivated:
		return f, nil
	default:
		return "", InvalidFieldError(s)
	}
}

// Patch is a partial item update. Nil fields are left untouched.
//
// Children replace the existing list wholesale. Props are upserted by name.
type Patch struct {
	Title       *string
	Content     *string
	Filename    *string
	MimeType    *string
	Tags        *[]string
	Props       []Prop
	Children    *[]Child
	AccessScope *AccessScope
}

// Empty reports whether the patch would change nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Content == nil && p.Filename == nil &&
		p.MimeType == nil && p.Tags == nil && len(p.Props) == 0 &&
		p.Children == nil && p.AccessScope == nil
}

// UpsertProp replaces the value of the named prop or appends it.
func UpsertProp(props []Prop, p Prop) []Prop {
	out := slices.Clone(props)
	for idx := range out {
		if out[idx].Name == p.Name {
			out[idx].TextValue = p.TextValue
			return out
		}
	}
	return append(out, p)
}

// SplitTags parses a comma separated tag list, trimming blanks.
func SplitTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
