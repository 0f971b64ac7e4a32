package testing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite is a conformance suite for metadata.Index implementations.
//
// Usage:
//
//	func TestMyIndex(t *testing.T) {
//	    suite := &metatesting.StoreTestSuite{
//	        NewStore: func(t *testing.T) metadata.Index {
//	            return myindex.New(t.TempDir())
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty index for each test. The suite closes
	// it when the test ends.
	NewStore func(t *testing.T) metadata.Index
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Records", suite.RunRecordTests)
	t.Run("Search", suite.RunSearchTests)
	t.Run("Lifecycle", suite.RunLifecycleTests)
}

func (suite *StoreTestSuite) newStore(t *testing.T) metadata.Index {
	t.Helper()
	store := suite.NewStore(t)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// newItem builds an active FILE record owned by owner. Each call gets a
// later modification date than the previous one in the same test.
func newItem(owner, title string, modified int) *media.Item {
	at := baseTime.Add(time.Duration(modified) * time.Minute)
	return &media.Item{
		ID:               uuid.NewString(),
		Module:           media.ModuleFile,
		Title:            title,
		Filename:         title + ".jpg",
		MimeType:         "image/jpeg",
		Size:             42,
		Activated:        true,
		AccessScope:      media.ScopePrivate,
		CreationDate:     at,
		CreatedBy:        owner,
		ModificationDate: at,
		ModifiedBy:       owner,
		Tags:             []string{},
		Props:            []media.Prop{},
		Children:         []media.Child{},
	}
}

func mustSave(t *testing.T, store metadata.Index, item *media.Item) *media.Item {
	t.Helper()
	saved, err := store.Save(testContext(), item)
	require.NoError(t, err)
	return saved
}

func ids(items []*media.Item) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}
