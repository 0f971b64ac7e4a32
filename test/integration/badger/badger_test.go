//go:build integration

package badger_test

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/policy"
	"github.com/marmos91/dittovault/pkg/store/content/fs"
	"github.com/marmos91/dittovault/pkg/store/metadata/badger"
	"github.com/marmos91/dittovault/pkg/sweep"
	"github.com/marmos91/dittovault/pkg/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stack is an engine over an on-disk badger index and filesystem payloads.
type stack struct {
	engine *vault.Engine
	index  *badger.BadgerMetadataStore
	store  *fs.FSContentStore
}

func open(t *testing.T, dir string) *stack {
	t.Helper()
	ctx := context.Background()

	index, err := badger.NewBadgerMetadataStore(ctx, badger.BadgerMetadataStoreConfig{
		DBPath: filepath.Join(dir, "metadata"),
	})
	require.NoError(t, err)

	store, err := fs.NewFSContentStore(ctx, fs.FSContentStoreConfig{
		BasePath: filepath.Join(dir, "content"),
		Compress: true,
	})
	require.NoError(t, err)

	engine, err := vault.New(vault.Config{
		Index:   index,
		Content: store,
		Policy:  policy.New(policy.DefaultAdminRole, policy.DefaultUserRole),
	})
	require.NoError(t, err)

	return &stack{engine: engine, index: index, store: store}
}

func (s *stack) close(t *testing.T) {
	t.Helper()
	require.NoError(t, s.index.Close())
	require.NoError(t, s.store.Close())
}

var alice = media.Identity{UserID: "alice", Roles: []string{policy.DefaultUserRole}}

// TestVault_PersistsAcrossRestarts verifies that records, payloads and trash
// state survive closing and reopening both stores.
//
// Run with: go test -tags=integration ./test/integration/badger/...
func TestVault_PersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s := open(t, dir)
	photo, err := s.engine.AddItem(ctx, alice, &media.Item{
		Title:    "Harbour at dawn",
		Filename: "harbour.jpg",
		MimeType: "image/jpeg",
		Tags:     []string{"sea", "morning"},
	}, strings.NewReader(strings.Repeat("jpeg", 4096)))
	require.NoError(t, err)

	draft, err := s.engine.AddItem(ctx, alice, &media.Item{
		Title:    "Blurry draft",
		Filename: "draft.jpg",
	}, strings.NewReader("draft"))
	require.NoError(t, err)
	require.NoError(t, s.engine.TrashItem(ctx, alice, draft.ID))
	s.close(t)

	s = open(t, dir)
	defer s.close(t)

	got, err := s.engine.GetItem(ctx, alice, photo.ID, vault.GetOptions{WithPayload: true})
	require.NoError(t, err)
	data, err := io.ReadAll(got.Payload)
	require.NoError(t, err)
	require.NoError(t, got.Payload.Close())
	assert.Equal(t, strings.Repeat("jpeg", 4096), string(data))
	assert.Equal(t, []string{"sea", "morning"}, got.Item.Tags)

	results, err := s.engine.SearchItems(ctx, alice, "harbour", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, photo.ID, results[0].ID)

	trash, err := s.engine.ListTrash(ctx, alice)
	require.NoError(t, err)
	require.Len(t, trash, 1)
	assert.Equal(t, draft.ID, trash[0].ID)

	report, err := s.engine.PurgeInactive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Purged)

	paths, err := s.store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}

// TestVault_SweepReclaimsOrphans plants a payload no record points to and
// checks that the sweeper removes it while leaving referenced payloads.
func TestVault_SweepReclaimsOrphans(t *testing.T) {
	ctx := context.Background()
	s := open(t, t.TempDir())
	defer s.close(t)

	kept, err := s.engine.AddItem(ctx, alice, &media.Item{Title: "kept", Filename: "kept.txt"}, strings.NewReader("kept"))
	require.NoError(t, err)

	_, _, err = s.store.Put(ctx, "orphan-payload-0001", strings.NewReader("orphan"))
	require.NoError(t, err)

	sweeper, err := sweep.New(s.engine, s.index, s.store, sweep.Config{Orphans: true}, nil)
	require.NoError(t, err)

	stats, err := sweeper.RunNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DeletedCount)

	paths, err := s.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, kept.LogicalPath, string(paths[0]))
}
