package testing

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite is a conformance suite for content.BinaryStore
// implementations. It tests the interface contract, not implementation
// details, so it runs unchanged against memory, filesystem and S3 stores.
//
// Usage:
//
//	func TestMyBinaryStore(t *testing.T) {
//	    suite := &storetesting.StoreTestSuite{
//	        NewStore: func(t *testing.T) content.BinaryStore {
//	            return mystore.New(t.TempDir())
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func(t *testing.T) content.BinaryStore
}

// Run executes all tests in the suite. Optional interfaces (Lister,
// StatsProvider) are skipped when the store does not implement them.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("DeleteOperations", suite.RunDeleteTests)
	t.Run("Listing", suite.RunListTests)
	t.Run("Statistics", suite.RunStatsTests)
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}

func generateTestID() string {
	return uuid.NewString()
}

func generateTestData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func mustPut(t *testing.T, store content.BinaryStore, id string, data []byte) content.LogicalPath {
	t.Helper()
	path, n, err := store.Put(testContext(), id, bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), n)
	require.NotEmpty(t, path)
	return path
}

func mustGet(t *testing.T, store content.BinaryStore, path content.LogicalPath) []byte {
	t.Helper()
	r, err := store.Get(testContext(), path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return data
}
