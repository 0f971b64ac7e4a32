package vault

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/policy"
	"github.com/marmos91/dittovault/pkg/store/content"
	contentmem "github.com/marmos91/dittovault/pkg/store/content/memory"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/marmos91/dittovault/pkg/store/metadata/cache"
	metamem "github.com/marmos91/dittovault/pkg/store/metadata/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurgeInactive_Twice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	file := env.addFile(t, alice, "f", "x", "")
	g := env.addGallery(t, alice, "g", media.ScopePrivate)
	active := env.addFile(t, alice, "keep", "y", "")
	require.NoError(t, env.engine.TrashItem(ctx, alice, file.ID))
	require.NoError(t, env.engine.TrashItem(ctx, alice, g.ID))

	report, err := env.engine.PurgeInactive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Purged)
	assert.Empty(t, report.Failures)

	_, err = env.engine.GetItem(ctx, admin, file.ID, GetOptions{IncludeInactive: true})
	assert.ErrorIs(t, err, media.ErrNotFound)
	assert.Equal(t, 1, env.binaryCount(t))

	_, err = env.engine.GetItem(ctx, alice, active.ID, GetOptions{})
	assert.NoError(t, err)

	report, err = env.engine.PurgeInactive(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Purged)
	assert.Empty(t, report.Failures)
	assert.Equal(t, 2, env.metrics.purged)
}

func TestPurgeInactive_BinaryFailureKeepsRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	file := env.addFile(t, alice, "f", "x", "")
	require.NoError(t, env.engine.TrashItem(ctx, alice, file.ID))

	env.store.failDelete = content.ErrUnavailable
	report, err := env.engine.PurgeInactive(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Purged)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, file.ID, report.Failures[0].ID)
	assert.ErrorIs(t, report.Failures[0].Err, media.ErrStoreUnavailable)

	got, err := env.engine.GetItem(ctx, alice, file.ID, GetOptions{IncludeInactive: true})
	require.NoError(t, err)
	assert.False(t, got.Item.Activated, "record stays inactive, not dropped")

	env.store.failDelete = nil
	report, err = env.engine.PurgeInactive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Purged)
	assert.Zero(t, env.binaryCount(t))
}

func TestPurgeInactive_MissingBinaryDoesNotBlock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	file := env.addFile(t, alice, "f", "x", "")
	require.NoError(t, env.engine.TrashItem(ctx, alice, file.ID))
	_, err := env.store.MemoryContentStore.Delete(ctx, content.LogicalPath(file.LogicalPath))
	require.NoError(t, err)

	report, err := env.engine.PurgeInactive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Purged)
}

func TestPurgeInactive_CancelledContext(t *testing.T) {
	env := newTestEnv(t)
	file := env.addFile(t, alice, "f", "x", "")
	require.NoError(t, env.engine.TrashItem(context.Background(), alice, file.ID))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.engine.PurgeInactive(ctx)
	assert.Error(t, err)

	got, err := env.engine.GetItem(context.Background(), alice, file.ID, GetOptions{IncludeInactive: true})
	require.NoError(t, err)
	assert.False(t, got.Item.Activated)
}

// Two vault instances share one backing index, each with its own cache.
func TestPurge_SkipsItemRestoredByAnotherInstance(t *testing.T) {
	ctx := context.Background()
	shared := metamem.NewMemoryMetadataStore()
	cs, err := contentmem.NewMemoryContentStore(ctx)
	require.NoError(t, err)

	newInstance := func() *Engine {
		idx, err := cache.New(shared, cache.Config{TTL: time.Minute})
		require.NoError(t, err)
		e, err := New(Config{Index: idx, Content: cs, Policy: policy.Evaluator{}})
		require.NoError(t, err)
		return e
	}
	a, b := newInstance(), newInstance()

	file, err := a.AddItem(ctx, alice, &media.Item{Title: "dune", Filename: "dune.jpg"}, strings.NewReader("sand"))
	require.NoError(t, err)
	require.NoError(t, a.TrashItem(ctx, alice, file.ID))

	// Instance a caches the trashed record.
	listed, err := a.GetItem(ctx, alice, file.ID, GetOptions{IncludeInactive: true})
	require.NoError(t, err)
	require.False(t, listed.Item.Activated)

	require.NoError(t, b.RestoreItem(ctx, alice, file.ID))

	purged, err := a.purgeOne(ctx, listed.Item)
	require.NoError(t, err)
	assert.False(t, purged)

	got, err := b.GetItem(ctx, alice, file.ID, GetOptions{WithPayload: true})
	require.NoError(t, err)
	data, err := io.ReadAll(got.Payload)
	require.NoError(t, err)
	require.NoError(t, got.Payload.Close())
	assert.Equal(t, "sand", string(data))
}

// staleIndex serves Get from a snapshot taken before a restore.
type staleIndex struct {
	*metamem.MemoryMetadataStore
	snapshot *media.Item
}

func (x *staleIndex) Get(ctx context.Context, id string) (*media.Item, error) {
	if x.snapshot != nil && x.snapshot.ID == id {
		return x.snapshot.Clone(), nil
	}
	return x.MemoryMetadataStore.Get(ctx, id)
}

func TestPurge_RecordDeleteIsConditional(t *testing.T) {
	ctx := context.Background()
	index := &staleIndex{MemoryMetadataStore: metamem.NewMemoryMetadataStore()}
	cs, err := contentmem.NewMemoryContentStore(ctx)
	require.NoError(t, err)
	e, err := New(Config{Index: index, Content: cs, Policy: policy.Evaluator{}})
	require.NoError(t, err)

	file, err := e.AddItem(ctx, alice, &media.Item{Title: "reef", Filename: "reef.jpg"}, strings.NewReader("coral"))
	require.NoError(t, err)
	require.NoError(t, e.TrashItem(ctx, alice, file.ID))

	index.snapshot, err = index.MemoryMetadataStore.Get(ctx, file.ID)
	require.NoError(t, err)
	require.NoError(t, index.MemoryMetadataStore.UpdateStatus(ctx, file.ID, metadata.StatusChange{Active: true, ModifiedBy: "alice"}))

	purged, err := e.purgeOne(ctx, index.snapshot)
	require.NoError(t, err)
	assert.False(t, purged)

	kept, err := index.MemoryMetadataStore.Get(ctx, file.ID)
	require.NoError(t, err)
	assert.True(t, kept.Activated)
}

func TestTrashRestore_StampAudit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	env.engine.now = func() time.Time { return at }

	file := env.addFile(t, alice, "f", "x", "")

	at = at.Add(time.Hour)
	require.NoError(t, env.engine.TrashItem(ctx, admin, file.ID))
	got, err := env.engine.GetItem(ctx, admin, file.ID, GetOptions{IncludeInactive: true})
	require.NoError(t, err)
	assert.Equal(t, "root", got.Item.ModifiedBy)
	assert.True(t, got.Item.ModificationDate.Equal(at))
	assert.Equal(t, "alice", got.Item.CreatedBy)

	at = at.Add(time.Hour)
	require.NoError(t, env.engine.RestoreItem(ctx, alice, file.ID))
	got, err = env.engine.GetItem(ctx, alice, file.ID, GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Item.ModifiedBy)
	assert.True(t, got.Item.ModificationDate.Equal(at))
}
