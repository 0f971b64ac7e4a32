package gallery

import (
	"testing"

	"github.com/marmos91/dittovault/pkg/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func files(ids ...string) []*media.Item {
	out := make([]*media.Item, len(ids))
	for i, id := range ids {
		out[i] = &media.Item{ID: id, Module: media.ModuleFile, MimeType: "image/jpeg", Activated: true}
	}
	return out
}

func TestOwnedAndReferences(t *testing.T) {
	var c Composer

	owned := c.Owned(files("a", "b"))
	require.Len(t, owned, 2)
	assert.Equal(t, media.Child{ID: "a", Module: media.ModuleFile, MimeType: "image/jpeg", Activated: true}, owned[0])

	refs := c.References(files("c"))
	require.Len(t, refs, 1)
	assert.Equal(t, media.ModuleReference, refs[0].Module)
	assert.Equal(t, "c", refs[0].ID)

	assert.Empty(t, c.Owned(nil))
}

func TestMerge(t *testing.T) {
	var c Composer
	existing := c.Owned(files("a", "b"))
	appended := c.References(files("c"))

	merged := c.Merge(existing, appended)
	assert.Equal(t, []string{"a", "b", "c"}, childIDs(merged))

	merged[0].ID = "changed"
	assert.Equal(t, "a", existing[0].ID, "merge must not alias its inputs")
}

func TestValidateFeatured(t *testing.T) {
	var c Composer
	children := c.Owned(files("a", "b"))

	assert.NoError(t, c.ValidateFeatured(children, "b"))

	err := c.ValidateFeatured(children, "zzz")
	assert.ErrorIs(t, err, media.ErrInvalidFeaturedReference)

	assert.ErrorIs(t, c.ValidateFeatured(children, ""), media.ErrInvalidFeaturedReference)
	assert.ErrorIs(t, c.ValidateFeatured(nil, "a"), media.ErrInvalidFeaturedReference)
}

func TestSetFeatured(t *testing.T) {
	var c Composer
	props := []media.Prop{{Name: "camera", TextValue: "x100"}}

	props = c.SetFeatured(props, "a")
	props = c.SetFeatured(props, "b")

	require.Len(t, props, 2)
	assert.Equal(t, media.Prop{Name: media.PropFeaturedID, TextValue: "b"}, props[1])
}

func TestPruneFeatured(t *testing.T) {
	var c Composer
	props := []media.Prop{
		{Name: "camera", TextValue: "x100"},
		{Name: media.PropFeaturedID, TextValue: "a"},
	}

	kept := c.PruneFeatured(props, c.Owned(files("a")))
	assert.Equal(t, props, kept)

	pruned := c.PruneFeatured(props, c.Owned(files("b")))
	assert.Equal(t, []media.Prop{{Name: "camera", TextValue: "x100"}}, pruned)
	assert.Len(t, props, 2, "input must be untouched")
}

func TestCloneChildren(t *testing.T) {
	var c Composer
	src := c.Merge(c.Owned(files("a")), c.References(files("b")))

	clone := c.CloneChildren(src)
	assert.Equal(t, []string{"a", "b"}, childIDs(clone))
	for _, ch := range clone {
		assert.Equal(t, media.ModuleReference, ch.Module)
	}
	assert.Equal(t, media.ModuleFile, src[0].Module)
}

func childIDs(children []media.Child) []string {
	out := make([]string, len(children))
	for i, c := range children {
		out[i] = c.ID
	}
	return out
}
