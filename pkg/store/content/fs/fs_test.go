package fs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/marmos91/dittovault/pkg/store/content"
	storetesting "github.com/marmos91/dittovault/pkg/store/content/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, compress bool) *FSContentStore {
	t.Helper()
	store, err := NewFSContentStore(context.Background(), FSContentStoreConfig{
		BasePath: t.TempDir(),
		Compress: compress,
	})
	require.NoError(t, err)
	return store
}

func TestFSContentStore(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) content.BinaryStore {
			return newStore(t, false)
		},
	}
	suite.Run(t)
}

func TestFSContentStoreCompressed(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) content.BinaryStore {
			return newStore(t, true)
		},
	}
	suite.Run(t)
}

func TestFSContentStore_Layout(t *testing.T) {
	store := newStore(t, false)

	path, _, err := store.Put(context.Background(), "3f2a9c", bytes.NewReader([]byte("x")))
	require.NoError(t, err)
	assert.Equal(t, content.LogicalPath("3f/3f2a9c"), path)

	_, err = os.Stat(filepath.Join(store.basePath, "3f", "3f2a9c"))
	assert.NoError(t, err)
}

func TestFSContentStore_CompressedReadableWithoutCompression(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	data := bytes.Repeat([]byte("vault "), 10_000)

	writer, err := NewFSContentStore(ctx, FSContentStoreConfig{BasePath: dir, Compress: true})
	require.NoError(t, err)
	path, n, err := writer.Put(ctx, "abcdef", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)

	info, err := os.Stat(filepath.Join(dir, "ab", "abcdef"+zstdSuffix))
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(len(data)))

	reader, err := NewFSContentStore(ctx, FSContentStoreConfig{BasePath: dir})
	require.NoError(t, err)
	rc, err := reader.Get(ctx, path)
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestFSContentStore_ListSkipsInFlight(t *testing.T) {
	store := newStore(t, false)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(filepath.Join(store.basePath, "ab"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(store.basePath, "ab", tmpPrefix+"123"), []byte("partial"), 0644))

	paths, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestFSContentStore_RejectsEscapingPaths(t *testing.T) {
	store := newStore(t, false)

	_, err := store.Get(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, content.ErrInvalidPath)

	_, err = store.Delete(context.Background(), "/abs")
	assert.ErrorIs(t, err, content.ErrInvalidPath)
}

func TestFSContentStore_DeleteKeepsFanOutDirectory(t *testing.T) {
	store := newStore(t, false)
	ctx := context.Background()

	path, _, err := store.Put(ctx, "ab0001", bytes.NewReader([]byte("x")))
	require.NoError(t, err)

	removed, err := store.Delete(ctx, path)
	require.NoError(t, err)
	assert.True(t, removed)

	info, err := os.Stat(filepath.Join(store.basePath, "ab"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, _, err = store.Put(ctx, "ab0002", bytes.NewReader([]byte("y")))
	assert.NoError(t, err)
}

func TestFSContentStore_ConcurrentPutDeleteSamePrefix(t *testing.T) {
	store := newStore(t, false)
	ctx := context.Background()

	const rounds = 50
	var wg sync.WaitGroup
	errs := make(chan error, 2*rounds)

	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			path, _, err := store.Put(ctx, fmt.Sprintf("cd%04d", i), bytes.NewReader([]byte("payload")))
			if err != nil {
				errs <- err
				return
			}
			if _, err := store.Delete(ctx, path); err != nil {
				errs <- err
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			if _, _, err := store.Put(ctx, fmt.Sprintf("cd%04d-keep", i), bytes.NewReader([]byte("payload"))); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	paths, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, paths, rounds)
}
