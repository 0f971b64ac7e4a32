package testing

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRecordTests executes per-record tests.
func (suite *StoreTestSuite) RunRecordTests(t *testing.T) {
	t.Run("Get_NotFound", suite.testGetNotFound)
	t.Run("SaveGet_RoundTrip", suite.testSaveGetRoundTrip)
	t.Run("Save_Replaces", suite.testSaveReplaces)
	t.Run("Save_EmptyID", suite.testSaveEmptyID)
	t.Run("Get_ReturnsCopy", suite.testGetReturnsCopy)
	t.Run("Update_AppliesFunction", suite.testUpdateApplies)
	t.Run("Update_FunctionError", suite.testUpdateFunctionError)
	t.Run("Update_NotFound", suite.testUpdateNotFound)
	t.Run("Update_Concurrent", suite.testUpdateConcurrent)
	t.Run("UpdateLogicalPath", suite.testUpdateLogicalPath)
	t.Run("DeleteByID", suite.testDeleteByID)
}

func (suite *StoreTestSuite) testGetNotFound(t *testing.T) {
	store := suite.newStore(t)

	_, err := store.Get(testContext(), "missing")
	assert.ErrorIs(t, err, metadata.ErrRecordNotFound)
}

func (suite *StoreTestSuite) testSaveGetRoundTrip(t *testing.T) {
	store := suite.newStore(t)

	item := newItem("alice", "sunset", 0)
	item.Tags = []string{"beach", "summer"}
	item.Props = []media.Prop{{Name: "camera", TextValue: "x100"}}
	item.LogicalPath = "ab/abc"
	mustSave(t, store, item)

	got, err := store.Get(testContext(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, item.Title, got.Title)
	assert.Equal(t, item.Tags, got.Tags)
	assert.Equal(t, item.Props, got.Props)
	assert.Equal(t, item.LogicalPath, got.LogicalPath)
	assert.Equal(t, item.Size, got.Size)
	assert.Equal(t, media.ScopePrivate, got.AccessScope)
	assert.True(t, item.CreationDate.Equal(got.CreationDate))
}

func (suite *StoreTestSuite) testSaveReplaces(t *testing.T) {
	store := suite.newStore(t)

	item := newItem("alice", "draft", 0)
	mustSave(t, store, item)

	item.Title = "final"
	mustSave(t, store, item)

	got, err := store.Get(testContext(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, "final", got.Title)
}

func (suite *StoreTestSuite) testSaveEmptyID(t *testing.T) {
	store := suite.newStore(t)

	item := newItem("alice", "nameless", 0)
	item.ID = ""
	_, err := store.Save(testContext(), item)
	assert.ErrorIs(t, err, metadata.ErrInvalidRecord)
}

func (suite *StoreTestSuite) testGetReturnsCopy(t *testing.T) {
	store := suite.newStore(t)

	item := newItem("alice", "original", 0)
	item.Tags = []string{"keep"}
	mustSave(t, store, item)

	got, err := store.Get(testContext(), item.ID)
	require.NoError(t, err)
	got.Title = "mutated"
	got.Tags[0] = "mutated"

	again, err := store.Get(testContext(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Title)
	assert.Equal(t, []string{"keep"}, again.Tags)
}

func (suite *StoreTestSuite) testUpdateApplies(t *testing.T) {
	store := suite.newStore(t)

	gallery := newItem("alice", "trip", 0)
	gallery.Module = media.ModuleGallery
	mustSave(t, store, gallery)

	updated, err := store.Update(testContext(), gallery.ID, func(item *media.Item) error {
		item.Children = append(item.Children, media.Child{ID: "c1", Module: media.ModuleFile, Activated: true})
		return nil
	})
	require.NoError(t, err)
	require.Len(t, updated.Children, 1)

	got, err := store.Get(testContext(), gallery.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Children, got.Children)
}

func (suite *StoreTestSuite) testUpdateFunctionError(t *testing.T) {
	store := suite.newStore(t)

	item := newItem("alice", "stable", 0)
	mustSave(t, store, item)

	boom := errors.New("rejected")
	_, err := store.Update(testContext(), item.ID, func(item *media.Item) error {
		item.Title = "changed"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := store.Get(testContext(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, "stable", got.Title)
}

func (suite *StoreTestSuite) testUpdateNotFound(t *testing.T) {
	store := suite.newStore(t)

	_, err := store.Update(testContext(), "missing", func(*media.Item) error { return nil })
	assert.ErrorIs(t, err, metadata.ErrRecordNotFound)

	err = store.UpdateStatus(testContext(), "missing", trashedBy("alice", 0))
	assert.ErrorIs(t, err, metadata.ErrRecordNotFound)
}

func (suite *StoreTestSuite) testUpdateLogicalPath(t *testing.T) {
	store := suite.newStore(t)

	item := newItem("alice", "moved", 0)
	mustSave(t, store, item)

	require.NoError(t, store.UpdateLogicalPath(testContext(), item.ID, content.LogicalPath("cd/new")))

	got, err := store.Get(testContext(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, "cd/new", got.LogicalPath)
}

func (suite *StoreTestSuite) testDeleteByID(t *testing.T) {
	store := suite.newStore(t)

	item := newItem("alice", "gone", 0)
	mustSave(t, store, item)

	existed, err := store.DeleteByID(testContext(), item.ID)
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.DeleteByID(testContext(), item.ID)
	require.NoError(t, err)
	assert.False(t, existed)

	_, err = store.Get(testContext(), item.ID)
	assert.ErrorIs(t, err, metadata.ErrRecordNotFound)
}

// testUpdateConcurrent appends a child from many goroutines at once, the way
// concurrent gallery appends do. No append may be lost.
func (suite *StoreTestSuite) testUpdateConcurrent(t *testing.T) {
	store := suite.newStore(t)

	gallery := newItem("alice", "gallery", 0)
	gallery.Module = media.ModuleGallery
	mustSave(t, store, gallery)

	const writers = 10
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Update(testContext(), gallery.ID, func(item *media.Item) error {
				item.Children = append(item.Children, media.Child{
					ID:        fmt.Sprintf("child-%02d", i),
					Module:    media.ModuleReference,
					Activated: true,
				})
				return nil
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := store.Get(testContext(), gallery.ID)
	require.NoError(t, err)
	assert.Len(t, got.Children, writers)
}
