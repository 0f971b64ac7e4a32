package testing

import (
	"fmt"
	"testing"

	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSearchTests executes Search tests.
func (suite *StoreTestSuite) RunSearchTests(t *testing.T) {
	t.Run("Search_TextTerms", suite.testSearchTextTerms)
	t.Run("Search_ActiveOnly", suite.testSearchActiveOnly)
	t.Run("Search_Visibility", suite.testSearchVisibility)
	t.Run("Search_VisibilityBeforeLimit", suite.testSearchVisibilityBeforeLimit)
	t.Run("Search_Ordering", suite.testSearchOrdering)
	t.Run("Search_NoVisibility", suite.testSearchNoVisibility)
}

var everyone = metadata.Visibility{All: true}

func (suite *StoreTestSuite) testSearchTextTerms(t *testing.T) {
	store := suite.newStore(t)

	beach := newItem("alice", "Sunset at the beach", 0)
	beach.Tags = []string{"Summer"}
	mountain := newItem("alice", "Mountain hike", 1)
	mountain.Props = []media.Prop{{Name: "location", TextValue: "Dolomites"}}
	mustSave(t, store, beach)
	mustSave(t, store, mountain)

	results, err := store.Search(testContext(), metadata.Query{Text: "BEACH summer", Visibility: everyone})
	require.NoError(t, err)
	assert.Equal(t, []string{beach.ID}, ids(results))

	results, err = store.Search(testContext(), metadata.Query{Text: "dolomites", Visibility: everyone})
	require.NoError(t, err)
	assert.Equal(t, []string{mountain.ID}, ids(results))

	results, err = store.Search(testContext(), metadata.Query{Text: "beach mountain", Visibility: everyone})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = store.Search(testContext(), metadata.Query{Visibility: everyone})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func (suite *StoreTestSuite) testSearchActiveOnly(t *testing.T) {
	store := suite.newStore(t)

	active := newItem("alice", "kept", 0)
	trashed := newItem("alice", "kept too", 1)
	trashed.Activated = false
	mustSave(t, store, active)
	mustSave(t, store, trashed)

	results, err := store.Search(testContext(), metadata.Query{Text: "kept", ActiveOnly: true, Visibility: everyone})
	require.NoError(t, err)
	assert.Equal(t, []string{active.ID}, ids(results))

	results, err = store.Search(testContext(), metadata.Query{Text: "kept", Visibility: everyone})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func (suite *StoreTestSuite) testSearchVisibility(t *testing.T) {
	store := suite.newStore(t)

	own := newItem("alice", "photo", 0)
	othersPrivate := newItem("bob", "photo", 1)
	othersPublic := newItem("bob", "photo", 2)
	othersPublic.AccessScope = media.ScopePublic
	mustSave(t, store, own)
	mustSave(t, store, othersPrivate)
	mustSave(t, store, othersPublic)

	results, err := store.Search(testContext(), metadata.Query{
		Text:       "photo",
		Visibility: metadata.Visibility{Owner: "alice", IncludePublic: true},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{own.ID, othersPublic.ID}, ids(results))

	results, err = store.Search(testContext(), metadata.Query{
		Text:       "photo",
		Visibility: metadata.Visibility{Owner: "alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{own.ID}, ids(results))

	results, err = store.Search(testContext(), metadata.Query{Text: "photo", Visibility: everyone})
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

// The visibility filter must run inside the index: a caller asking for N
// results gets N of their own even when newer hidden records exist.
func (suite *StoreTestSuite) testSearchVisibilityBeforeLimit(t *testing.T) {
	store := suite.newStore(t)

	var mine []string
	for i := 0; i < 3; i++ {
		item := newItem("alice", fmt.Sprintf("shot %d", i), i)
		mustSave(t, store, item)
		mine = append(mine, item.ID)
	}
	for i := 0; i < 5; i++ {
		mustSave(t, store, newItem("bob", fmt.Sprintf("shot %d", i), 10+i))
	}

	results, err := store.Search(testContext(), metadata.Query{
		Text:       "shot",
		Size:       3,
		Visibility: metadata.Visibility{Owner: "alice"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, mine, ids(results))
}

func (suite *StoreTestSuite) testSearchOrdering(t *testing.T) {
	store := suite.newStore(t)

	oldest := newItem("alice", "frame", 0)
	middle := newItem("alice", "frame", 5)
	newest := newItem("alice", "frame", 9)
	mustSave(t, store, middle)
	mustSave(t, store, newest)
	mustSave(t, store, oldest)

	results, err := store.Search(testContext(), metadata.Query{Text: "frame", Visibility: everyone})
	require.NoError(t, err)
	assert.Equal(t, []string{newest.ID, middle.ID, oldest.ID}, ids(results))

	results, err = store.Search(testContext(), metadata.Query{Text: "frame", Size: 2, Visibility: everyone})
	require.NoError(t, err)
	assert.Equal(t, []string{newest.ID, middle.ID}, ids(results))
}

func (suite *StoreTestSuite) testSearchNoVisibility(t *testing.T) {
	store := suite.newStore(t)

	public := newItem("bob", "open", 0)
	public.AccessScope = media.ScopePublic
	mustSave(t, store, public)

	results, err := store.Search(testContext(), metadata.Query{Text: "open"})
	require.NoError(t, err)
	assert.Empty(t, results)
}
