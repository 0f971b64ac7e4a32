package testing

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunBasicTests executes Put/Get tests.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("Get_NotFound", suite.testGetNotFound)
	t.Run("PutGet_RoundTrip", suite.testPutGetRoundTrip)
	t.Run("PutGet_Empty", suite.testPutGetEmpty)
	t.Run("PutGet_Large", suite.testPutGetLarge)
	t.Run("Put_DistinctPaths", suite.testPutDistinctPaths)
	t.Run("Put_InvalidID", suite.testPutInvalidID)
	t.Run("Put_ReaderError", suite.testPutReaderError)
	t.Run("Put_CancelledContext", suite.testPutCancelled)
}

// ============================================================================
// Get Tests
// ============================================================================

func (suite *StoreTestSuite) testGetNotFound(t *testing.T) {
	store := suite.NewStore(t)

	path, err := content.PathFor(generateTestID())
	require.NoError(t, err)

	_, err = store.Get(testContext(), path)
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}

// ============================================================================
// Put Tests
// ============================================================================

func (suite *StoreTestSuite) testPutGetRoundTrip(t *testing.T) {
	store := suite.NewStore(t)
	data := []byte("Hello, Vault!")

	path := mustPut(t, store, generateTestID(), data)
	assert.Equal(t, data, mustGet(t, store, path))
}

func (suite *StoreTestSuite) testPutGetEmpty(t *testing.T) {
	store := suite.NewStore(t)

	path := mustPut(t, store, generateTestID(), []byte{})
	assert.Empty(t, mustGet(t, store, path))
}

func (suite *StoreTestSuite) testPutGetLarge(t *testing.T) {
	store := suite.NewStore(t)
	data := generateTestData(3 * 1024 * 1024)

	path := mustPut(t, store, generateTestID(), data)
	assert.True(t, bytes.Equal(data, mustGet(t, store, path)))
}

func (suite *StoreTestSuite) testPutDistinctPaths(t *testing.T) {
	store := suite.NewStore(t)

	p1 := mustPut(t, store, generateTestID(), []byte("one"))
	p2 := mustPut(t, store, generateTestID(), []byte("two"))

	assert.NotEqual(t, p1, p2)
	assert.Equal(t, []byte("one"), mustGet(t, store, p1))
	assert.Equal(t, []byte("two"), mustGet(t, store, p2))
}

func (suite *StoreTestSuite) testPutInvalidID(t *testing.T) {
	store := suite.NewStore(t)

	for _, id := range []string{"", "../escape", "a/b"} {
		_, _, err := store.Put(testContext(), id, bytes.NewReader([]byte("x")))
		assert.ErrorIs(t, err, content.ErrInvalidPath, "id %q", id)
	}
}

type failingReader struct{ err error }

func (f failingReader) Read([]byte) (int, error) { return 0, f.err }

func (suite *StoreTestSuite) testPutReaderError(t *testing.T) {
	store := suite.NewStore(t)
	id := generateTestID()
	boom := errors.New("client went away")

	_, _, err := store.Put(testContext(), id, failingReader{err: boom})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	// Nothing readable may be left behind
	path, err := content.PathFor(id)
	require.NoError(t, err)
	_, err = store.Get(testContext(), path)
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}

func (suite *StoreTestSuite) testPutCancelled(t *testing.T) {
	store := suite.NewStore(t)

	ctx, cancel := context.WithCancel(testContext())
	cancel()

	_, _, err := store.Put(ctx, generateTestID(), bytes.NewReader([]byte("late")))
	assert.ErrorIs(t, err, context.Canceled)
}
