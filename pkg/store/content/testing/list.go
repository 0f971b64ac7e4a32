package testing

import (
	"testing"

	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunListTests executes content.Lister tests.
func (suite *StoreTestSuite) RunListTests(t *testing.T) {
	t.Run("List_Empty", suite.testListEmpty)
	t.Run("List_AfterPutAndDelete", suite.testListAfterPutAndDelete)
}

func (suite *StoreTestSuite) lister(t *testing.T) (content.BinaryStore, content.Lister) {
	store := suite.NewStore(t)
	lister, ok := store.(content.Lister)
	if !ok {
		t.Skip("Store does not implement content.Lister")
	}
	return store, lister
}

func (suite *StoreTestSuite) testListEmpty(t *testing.T) {
	_, lister := suite.lister(t)

	paths, err := lister.List(testContext())
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func (suite *StoreTestSuite) testListAfterPutAndDelete(t *testing.T) {
	store, lister := suite.lister(t)

	p1 := mustPut(t, store, generateTestID(), []byte("a"))
	p2 := mustPut(t, store, generateTestID(), []byte("b"))
	p3 := mustPut(t, store, generateTestID(), []byte("c"))

	_, err := store.Delete(testContext(), p2)
	require.NoError(t, err)

	paths, err := lister.List(testContext())
	require.NoError(t, err)
	assert.ElementsMatch(t, []content.LogicalPath{p1, p3}, paths)
}

// RunStatsTests executes content.StatsProvider tests.
func (suite *StoreTestSuite) RunStatsTests(t *testing.T) {
	store := suite.NewStore(t)
	stats, ok := store.(content.StatsProvider)
	if !ok {
		t.Skip("Store does not implement content.StatsProvider")
	}

	empty, err := stats.Stats(testContext())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), empty.ContentCount)

	mustPut(t, store, generateTestID(), generateTestData(100))
	mustPut(t, store, generateTestID(), generateTestData(200))

	got, err := stats.Stats(testContext())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.ContentCount)
	assert.NotZero(t, got.UsedSize)
}
