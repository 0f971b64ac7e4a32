package testing

import (
	"testing"

	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDeleteTests executes Delete tests.
func (suite *StoreTestSuite) RunDeleteTests(t *testing.T) {
	t.Run("Delete_Success", suite.testDeleteSuccess)
	t.Run("Delete_Idempotent", suite.testDeleteIdempotent)
	t.Run("Delete_LeavesOthers", suite.testDeleteLeavesOthers)
}

func (suite *StoreTestSuite) testDeleteSuccess(t *testing.T) {
	store := suite.NewStore(t)
	path := mustPut(t, store, generateTestID(), []byte("bye"))

	existed, err := store.Delete(testContext(), path)
	require.NoError(t, err)
	assert.True(t, existed)

	_, err = store.Get(testContext(), path)
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}

func (suite *StoreTestSuite) testDeleteIdempotent(t *testing.T) {
	store := suite.NewStore(t)
	path := mustPut(t, store, generateTestID(), []byte("bye"))

	_, err := store.Delete(testContext(), path)
	require.NoError(t, err)

	existed, err := store.Delete(testContext(), path)
	require.NoError(t, err)
	assert.False(t, existed)
}

func (suite *StoreTestSuite) testDeleteLeavesOthers(t *testing.T) {
	store := suite.NewStore(t)
	keep := mustPut(t, store, generateTestID(), []byte("keep"))
	drop := mustPut(t, store, generateTestID(), []byte("drop"))

	_, err := store.Delete(testContext(), drop)
	require.NoError(t, err)

	assert.Equal(t, []byte("keep"), mustGet(t, store, keep))
}
