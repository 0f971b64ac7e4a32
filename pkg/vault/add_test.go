package vault

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/policy"
	"github.com/marmos91/dittovault/pkg/store/content"
	contentmem "github.com/marmos91/dittovault/pkg/store/content/memory"
	metamem "github.com/marmos91/dittovault/pkg/store/metadata/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddItem_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	in := &media.Item{
		Title:       "Sunset",
		Content:     "taken from the pier",
		Filename:    "sunset.jpg",
		MimeType:    "image/jpeg",
		AccessScope: media.ScopePublic,
		Tags:        []string{"beach", "evening"},
		Props:       []media.Prop{{Name: "camera", TextValue: "x100"}},
	}
	added, err := env.engine.AddItem(ctx, alice, in, strings.NewReader("jpeg bytes"))
	require.NoError(t, err)

	assert.NotEmpty(t, added.ID)
	assert.Equal(t, media.ModuleFile, added.Module)
	assert.True(t, added.Activated)
	assert.Equal(t, int64(len("jpeg bytes")), added.Size)
	assert.Equal(t, "alice", added.CreatedBy)
	assert.Equal(t, "alice", added.ModifiedBy)
	assert.False(t, added.CreationDate.IsZero())
	assert.False(t, added.ModificationDate.IsZero())
	assert.NotEmpty(t, added.LogicalPath)
	assert.Empty(t, in.ID, "the caller's item must not be modified")

	got, err := env.engine.GetItem(ctx, alice, added.ID, GetOptions{WithPayload: true})
	require.NoError(t, err)
	assert.Equal(t, in.Title, got.Item.Title)
	assert.Equal(t, in.Content, got.Item.Content)
	assert.Equal(t, in.Filename, got.Item.Filename)
	assert.Equal(t, in.MimeType, got.Item.MimeType)
	assert.Equal(t, in.AccessScope, got.Item.AccessScope)
	assert.Equal(t, in.Tags, got.Item.Tags)
	assert.Equal(t, in.Props, got.Item.Props)
	assert.Equal(t, "jpeg bytes", readPayload(t, got.Payload))
}

func TestAddItem_IgnoresCallerControlledFields(t *testing.T) {
	env := newTestEnv(t)

	added, err := env.engine.AddItem(context.Background(), alice, &media.Item{
		ID:          "chosen-by-caller",
		Title:       "x",
		CreatedBy:   "mallory",
		LogicalPath: "../../etc/passwd",
		Size:        999,
		Activated:   false,
	}, strings.NewReader("abc"))
	require.NoError(t, err)

	assert.NotEqual(t, "chosen-by-caller", added.ID)
	assert.Equal(t, "alice", added.CreatedBy)
	assert.NotEqual(t, "../../etc/passwd", added.LogicalPath)
	assert.Equal(t, int64(3), added.Size)
	assert.True(t, added.Activated)
	assert.Equal(t, media.ScopePrivate, added.AccessScope)
}

func TestAddItem_IDsAreUnique(t *testing.T) {
	env := newTestEnv(t)

	seen := make(map[string]bool)
	for range 20 {
		item := env.addFile(t, alice, "f", "x", "")
		assert.False(t, seen[item.ID])
		seen[item.ID] = true
	}
}

func TestAddItem_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		item    *media.Item
		payload string
		hasBody bool
	}{
		{"nil item", nil, "", false},
		{"missing title", &media.Item{Module: media.ModuleFile}, "x", true},
		{"blank title", &media.Item{Title: "   "}, "x", true},
		{"reference with payload", &media.Item{Module: media.ModuleReference}, "x", true},
		{"gallery with payload", &media.Item{Module: media.ModuleGallery, Title: "g"}, "x", true},
		{"file without payload", &media.Item{Module: media.ModuleFile, Title: "f"}, "", false},
		{"no module, no payload", &media.Item{Title: "f"}, "", false},
		{"unknown module", &media.Item{Module: "ALBUM", Title: "f"}, "", false},
		{"children on a file", &media.Item{Title: "f", Children: []media.Child{{ID: "a", Module: media.ModuleFile}}}, "x", true},
		{"bad scope", &media.Item{Title: "f", AccessScope: "SECRET"}, "x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body *strings.Reader
			if tt.hasBody {
				body = strings.NewReader(tt.payload)
			}
			var err error
			if body != nil {
				_, err = env.engine.AddItem(ctx, alice, tt.item, body)
			} else {
				_, err = env.engine.AddItem(ctx, alice, tt.item, nil)
			}
			assert.ErrorIs(t, err, media.ErrInvalidInput)
		})
	}

	assert.Zero(t, env.store.putCount(), "validation must precede any store call")
	assert.Zero(t, env.index.Len())
}

func TestAddItem_ReferenceNeedsNoTitle(t *testing.T) {
	env := newTestEnv(t)

	ref, err := env.engine.AddItem(context.Background(), alice, &media.Item{Module: media.ModuleReference}, nil)
	require.NoError(t, err)
	assert.Equal(t, media.ModuleReference, ref.Module)
	assert.Empty(t, ref.LogicalPath)
	assert.Zero(t, env.store.putCount())
}

func TestAddItem_GalleryFeaturedMustBeChild(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.AddItem(context.Background(), alice, &media.Item{
		Module:   media.ModuleGallery,
		Title:    "g",
		Children: []media.Child{{ID: "a", Module: media.ModuleReference}},
		Props:    []media.Prop{{Name: media.PropFeaturedID, TextValue: "b"}},
	}, nil)
	assert.ErrorIs(t, err, media.ErrInvalidFeaturedReference)
}

func TestAddItem_AccessDenied(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.AddItem(context.Background(), nobody, &media.Item{Title: "x"}, strings.NewReader("x"))
	assert.ErrorIs(t, err, media.ErrAccessDenied)
	assert.Zero(t, env.store.putCount())
}

func TestAddItem_BinaryFailureWritesNoMetadata(t *testing.T) {
	env := newTestEnv(t)
	env.store.failPut = content.ErrUnavailable

	_, err := env.engine.AddItem(context.Background(), alice, &media.Item{Title: "x"}, strings.NewReader("x"))
	assert.ErrorIs(t, err, media.ErrStoreUnavailable)
	assert.Zero(t, env.index.Len())
}

func TestAddItem_MetadataFailureRemovesBinary(t *testing.T) {
	env := newTestEnv(t)
	env.index.failSave = errors.New("index down")

	_, err := env.engine.AddItem(context.Background(), alice, &media.Item{Title: "x"}, strings.NewReader("x"))
	assert.ErrorIs(t, err, media.ErrStoreInconsistency)

	assert.Zero(t, env.binaryCount(t), "the compensating delete must remove the binary")
	assert.Equal(t, 1, env.metrics.compensations)
	assert.Equal(t, 1, env.metrics.inconsistencies)
}

func TestAddItem_FailedCompensationLeavesOrphan(t *testing.T) {
	env := newTestEnv(t)
	env.index.failSave = errors.New("index down")
	env.store.failDelete = content.ErrUnavailable

	_, err := env.engine.AddItem(context.Background(), alice, &media.Item{Title: "x"}, strings.NewReader("x"))
	require.ErrorIs(t, err, media.ErrStoreInconsistency)

	var verr *media.Error
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Message, "orphaned")
	assert.Equal(t, 1, env.binaryCount(t))
	assert.Zero(t, env.index.Len())
}

func TestAddGallery(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	g, err := env.engine.AddGallery(ctx, alice, GalleryInput{
		Title:       "Album",
		AccessScope: media.ScopePublic,
		Tags:        []string{"2024"},
		Files: []InlineFile{
			inline("a.jpg", "image/jpeg", "aaa"),
			inline("b.png", "image/png", "bb"),
		},
	})
	require.NoError(t, err)

	assert.Equal(t, media.ModuleGallery, g.Module)
	assert.Empty(t, g.LogicalPath)
	require.Len(t, g.Children, 2)

	for i, c := range g.Children {
		assert.Equal(t, media.ModuleFile, c.Module)
		assert.True(t, c.Activated)

		child, err := env.engine.GetItem(ctx, alice, c.ID, GetOptions{WithPayload: true})
		require.NoError(t, err)
		assert.Equal(t, media.ScopePublic, child.Item.AccessScope, "children inherit the gallery scope")
		assert.Equal(t, []string{"aaa", "bb"}[i], readPayload(t, child.Payload))
	}
	assert.Equal(t, "image/jpeg", g.Children[0].MimeType)
	assert.Equal(t, 3, env.index.Len())
}

func TestAddGallery_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.AddGallery(ctx, alice, GalleryInput{})
	assert.ErrorIs(t, err, media.ErrInvalidInput)

	_, err = env.engine.AddGallery(ctx, alice, GalleryInput{Title: "  "})
	assert.ErrorIs(t, err, media.ErrInvalidInput)

	_, err = env.engine.AddGallery(ctx, alice, GalleryInput{Title: "g", Files: []InlineFile{{Filename: "no-body"}}})
	assert.ErrorIs(t, err, media.ErrInvalidInput)

	_, err = env.engine.AddGallery(ctx, nobody, GalleryInput{Title: "g"})
	assert.ErrorIs(t, err, media.ErrAccessDenied)

	assert.Zero(t, env.store.putCount())
}

func TestAddGallery_FileFailureUndoesEarlierFiles(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.engine.AddGallery(context.Background(), alice, GalleryInput{
		Title: "Album",
		Files: []InlineFile{
			inline("a.jpg", "image/jpeg", "aaa"),
			{Filename: "b.png", Payload: iotest.ErrReader(errors.New("disk gone"))},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, media.ErrStoreUnavailable)

	assert.Zero(t, env.index.Len())
	assert.Zero(t, env.binaryCount(t))
}

func TestAddGallery_GallerySaveFailureUndoesFiles(t *testing.T) {
	env := newTestEnv(t)
	env.index.failSave = errors.New("index down")
	env.index.failSaveModule = media.ModuleGallery

	_, err := env.engine.AddGallery(context.Background(), alice, GalleryInput{
		Title: "Album",
		Files: []InlineFile{inline("a.jpg", "image/jpeg", "aaa")},
	})
	assert.ErrorIs(t, err, media.ErrStoreUnavailable)

	assert.Zero(t, env.index.Len())
	assert.Zero(t, env.binaryCount(t))
}

func TestAddGallery_UndoFailureIsInconsistency(t *testing.T) {
	env := newTestEnv(t)
	env.index.failSave = errors.New("index down")
	env.index.failSaveModule = media.ModuleGallery
	env.index.failDelete = errors.New("index down")

	_, err := env.engine.AddGallery(context.Background(), alice, GalleryInput{
		Title: "Album",
		Files: []InlineFile{inline("a.jpg", "image/jpeg", "aaa")},
	})
	assert.ErrorIs(t, err, media.ErrStoreInconsistency)
	assert.Equal(t, 1, env.metrics.inconsistencies)
}

// slowReader yields one byte per delay, at most n bytes.
type slowReader struct {
	delay time.Duration
	n     int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if r.n == 0 {
		return 0, io.EOF
	}
	time.Sleep(r.delay)
	r.n--
	p[0] = 'x'
	return 1, nil
}

func TestAddItem_TimeoutIsStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	index := metamem.NewMemoryMetadataStore()
	cs, err := contentmem.NewMemoryContentStore(ctx)
	require.NoError(t, err)
	e, err := New(Config{
		Index:            index,
		Content:          cs,
		Policy:           policy.Evaluator{},
		OperationTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	start := time.Now()
	_, err = e.AddItem(ctx, alice, &media.Item{Title: "slow", Filename: "slow.bin"}, &slowReader{delay: 20 * time.Millisecond, n: 200})
	require.Error(t, err)
	assert.ErrorIs(t, err, media.ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	assert.Zero(t, index.Len(), "no record without a stored binary")
	paths, err := cs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, paths)
}
