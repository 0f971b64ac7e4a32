package testing

import (
	"testing"
	"time"

	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunLifecycleTests executes trash, purge and orphan-support tests.
func (suite *StoreTestSuite) RunLifecycleTests(t *testing.T) {
	t.Run("UpdateStatus_ListInactive", suite.testUpdateStatusListInactive)
	t.Run("UpdateStatus_StampsAudit", suite.testUpdateStatusStampsAudit)
	t.Run("DeleteInactiveByID", suite.testDeleteInactiveByID)
	t.Run("ListInactive_Visibility", suite.testListInactiveVisibility)
	t.Run("DeleteInactiveBulk", suite.testDeleteInactiveBulk)
	t.Run("DeleteInactiveBulk_Empty", suite.testDeleteInactiveBulkEmpty)
	t.Run("LogicalPaths", suite.testLogicalPaths)
}

func (suite *StoreTestSuite) testUpdateStatusListInactive(t *testing.T) {
	store := suite.newStore(t)

	item := newItem("alice", "bin", 0)
	mustSave(t, store, item)

	require.NoError(t, store.UpdateStatus(testContext(), item.ID, trashedBy("alice", 1)))
	trash, err := store.ListInactive(testContext(), everyone)
	require.NoError(t, err)
	assert.Equal(t, []string{item.ID}, ids(trash))
	assert.False(t, trash[0].Activated)

	require.NoError(t, store.UpdateStatus(testContext(), item.ID, metadata.StatusChange{Active: true, ModifiedBy: "alice", ModifiedAt: baseTime}))
	trash, err = store.ListInactive(testContext(), everyone)
	require.NoError(t, err)
	assert.Empty(t, trash)
}

// trashedBy is a StatusChange moving a record to the trash.
func trashedBy(who string, minutes int) metadata.StatusChange {
	return metadata.StatusChange{
		Active:     false,
		ModifiedBy: who,
		ModifiedAt: baseTime.Add(time.Duration(minutes) * time.Minute),
	}
}

func (suite *StoreTestSuite) testUpdateStatusStampsAudit(t *testing.T) {
	store := suite.newStore(t)

	item := newItem("alice", "bin", 0)
	mustSave(t, store, item)

	change := trashedBy("root", 30)
	require.NoError(t, store.UpdateStatus(testContext(), item.ID, change))

	got, err := store.Get(testContext(), item.ID)
	require.NoError(t, err)
	assert.False(t, got.Activated)
	assert.Equal(t, "root", got.ModifiedBy)
	assert.True(t, got.ModificationDate.Equal(change.ModifiedAt), "got %v", got.ModificationDate)
	assert.Equal(t, "alice", got.CreatedBy)
	assert.Equal(t, "bin", got.Title)
}

func (suite *StoreTestSuite) testDeleteInactiveByID(t *testing.T) {
	store := suite.newStore(t)

	active := mustSave(t, store, newItem("alice", "active", 0))
	trashed := newItem("alice", "trashed", 1)
	trashed.Activated = false
	mustSave(t, store, trashed)

	deleted, err := store.DeleteInactiveByID(testContext(), active.ID)
	require.NoError(t, err)
	assert.False(t, deleted, "active records survive")
	_, err = store.Get(testContext(), active.ID)
	require.NoError(t, err)

	deleted, err = store.DeleteInactiveByID(testContext(), trashed.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	_, err = store.Get(testContext(), trashed.ID)
	assert.ErrorIs(t, err, metadata.ErrRecordNotFound)

	trash, err := store.ListInactive(testContext(), everyone)
	require.NoError(t, err)
	assert.Empty(t, trash)

	deleted, err = store.DeleteInactiveByID(testContext(), "missing")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func (suite *StoreTestSuite) testListInactiveVisibility(t *testing.T) {
	store := suite.newStore(t)

	mine := newItem("alice", "mine", 0)
	theirs := newItem("bob", "theirs", 1)
	mine.Activated = false
	theirs.Activated = false
	mustSave(t, store, mine)
	mustSave(t, store, theirs)

	trash, err := store.ListInactive(testContext(), metadata.Visibility{Owner: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{mine.ID}, ids(trash))

	trash, err = store.ListInactive(testContext(), everyone)
	require.NoError(t, err)
	assert.Len(t, trash, 2)
}

func (suite *StoreTestSuite) testDeleteInactiveBulk(t *testing.T) {
	store := suite.newStore(t)

	keep := newItem("alice", "keep", 0)
	drop1 := newItem("alice", "drop", 1)
	drop2 := newItem("bob", "drop", 2)
	drop1.Activated = false
	drop2.Activated = false
	mustSave(t, store, keep)
	mustSave(t, store, drop1)
	mustSave(t, store, drop2)

	n, err := store.DeleteInactiveBulk(testContext())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	_, err = store.Get(testContext(), drop1.ID)
	assert.ErrorIs(t, err, metadata.ErrRecordNotFound)
	_, err = store.Get(testContext(), keep.ID)
	assert.NoError(t, err)

	n, err = store.DeleteInactiveBulk(testContext())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func (suite *StoreTestSuite) testDeleteInactiveBulkEmpty(t *testing.T) {
	store := suite.newStore(t)

	n, err := store.DeleteInactiveBulk(testContext())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func (suite *StoreTestSuite) testLogicalPaths(t *testing.T) {
	store := suite.newStore(t)

	withPayload := newItem("alice", "file", 0)
	withPayload.LogicalPath = "ab/abc"
	trashed := newItem("alice", "trashed", 1)
	trashed.LogicalPath = "cd/cde"
	trashed.Activated = false
	reference := newItem("alice", "ref", 2)
	reference.LogicalPath = ""
	mustSave(t, store, withPayload)
	mustSave(t, store, trashed)
	mustSave(t, store, reference)

	paths, err := store.LogicalPaths(testContext())
	require.NoError(t, err)
	assert.ElementsMatch(t, []content.LogicalPath{"ab/abc", "cd/cde"}, paths)
}
