package cache

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/marmos91/dittovault/pkg/store/metadata/memory"
	storetesting "github.com/marmos91/dittovault/pkg/store/metadata/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMetrics struct {
	hits, misses atomic.Int64
}

func (m *countingMetrics) RecordCacheHit()  { m.hits.Add(1) }
func (m *countingMetrics) RecordCacheMiss() { m.misses.Add(1) }

// countingIndex counts Get calls reaching the backend.
type countingIndex struct {
	*memory.MemoryMetadataStore
	gets atomic.Int64
}

func (c *countingIndex) Get(ctx context.Context, id string) (*media.Item, error) {
	c.gets.Add(1)
	return c.MemoryMetadataStore.Get(ctx, id)
}

func newCached(t *testing.T) (*CachedIndex, *countingIndex, *countingMetrics) {
	t.Helper()
	inner := &countingIndex{MemoryMetadataStore: memory.NewMemoryMetadataStore()}
	m := &countingMetrics{}
	c, err := New(inner, Config{Size: 16, Metrics: m})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, inner, m
}

func TestCachedIndex_Conformance(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) metadata.Index {
			c, err := New(memory.NewMemoryMetadataStore(), Config{})
			require.NoError(t, err)
			return c
		},
	}
	suite.Run(t)
}

func TestCachedIndex_GetIsServedFromCache(t *testing.T) {
	ctx := context.Background()
	c, inner, m := newCached(t)

	_, err := inner.Save(ctx, &media.Item{ID: "a", Module: media.ModuleFile, Title: "one", Activated: true})
	require.NoError(t, err)

	_, err = c.Get(ctx, "a")
	require.NoError(t, err)
	_, err = c.Get(ctx, "a")
	require.NoError(t, err)

	assert.Equal(t, int64(1), inner.gets.Load())
	assert.Equal(t, int64(1), m.hits.Load())
	assert.Equal(t, int64(1), m.misses.Load())
}

func TestCachedIndex_HitsAreCopies(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newCached(t)

	_, err := c.Save(ctx, &media.Item{ID: "a", Module: media.ModuleFile, Title: "one", Activated: true})
	require.NoError(t, err)

	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	got.Title = "mutated"

	again, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "one", again.Title)
}

func TestCachedIndex_WritesInvalidate(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newCached(t)

	_, err := c.Save(ctx, &media.Item{ID: "a", Module: media.ModuleFile, Title: "one", Activated: true})
	require.NoError(t, err)
	_, err = c.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, c.UpdateStatus(ctx, "a", metadata.StatusChange{Active: false, ModifiedBy: "alice"}))
	got, err := c.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, got.Activated)

	_, err = c.Update(ctx, "a", func(item *media.Item) error {
		item.Title = "two"
		return nil
	})
	require.NoError(t, err)
	got, err = c.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "two", got.Title)

	n, err := c.DeleteInactiveBulk(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, c.Len())

	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, metadata.ErrRecordNotFound)
}

func TestCachedIndex_DeleteByIDInvalidates(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newCached(t)

	_, err := c.Save(ctx, &media.Item{ID: "a", Module: media.ModuleFile, Activated: true})
	require.NoError(t, err)

	ok, err := c.DeleteByID(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, metadata.ErrRecordNotFound)
}

func TestNew_RequiresInner(t *testing.T) {
	_, err := New(nil, Config{})
	assert.Error(t, err)
}

func TestCachedIndex_GetFreshSeesOtherWriters(t *testing.T) {
	ctx := context.Background()
	shared := memory.NewMemoryMetadataStore()
	a, err := New(shared, Config{Size: 16})
	require.NoError(t, err)
	b, err := New(shared, Config{Size: 16})
	require.NoError(t, err)

	_, err = a.Save(ctx, &media.Item{ID: "x", Module: media.ModuleFile, Title: "x", Activated: false})
	require.NoError(t, err)
	_, err = a.Get(ctx, "x")
	require.NoError(t, err)

	require.NoError(t, b.UpdateStatus(ctx, "x", metadata.StatusChange{Active: true, ModifiedBy: "bob"}))

	stale, err := a.Get(ctx, "x")
	require.NoError(t, err)
	assert.False(t, stale.Activated, "plain Get is served from a's cache")

	fresh, err := a.GetFresh(ctx, "x")
	require.NoError(t, err)
	assert.True(t, fresh.Activated)

	again, err := a.Get(ctx, "x")
	require.NoError(t, err)
	assert.True(t, again.Activated, "GetFresh refreshes the cached copy")

	deleted, err := a.DeleteInactiveByID(ctx, "x")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = shared.Get(ctx, "x")
	require.NoError(t, err)

	_, err = a.GetFresh(ctx, "missing")
	assert.ErrorIs(t, err, metadata.ErrRecordNotFound)
}
