package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/marmos91/dittovault/pkg/store/content"
)

// MemoryContentStore implements content.BinaryStore using in-memory storage.
//
// Designed for tests and development. Data is lost on restart and bounded by
// available RAM.
//
// Implemented Interfaces:
//   - content.BinaryStore
//   - content.Lister (orphan sweeps)
//   - content.StatsProvider
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Payloads are copied on the
// way in and served from an immutable slice on the way out.
type MemoryContentStore struct {
	// data stores payloads keyed by logical path
	data map[content.LogicalPath][]byte

	// mu protects concurrent access to data map
	mu sync.RWMutex
}

// NewMemoryContentStore creates a new, empty in-memory content store.
func NewMemoryContentStore(ctx context.Context) (*MemoryContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &MemoryContentStore{
		data: make(map[content.LogicalPath][]byte),
	}, nil
}

// Put buffers r fully before publishing it, so readers never see a partial
// payload.
func (s *MemoryContentStore) Put(ctx context.Context, id string, r io.Reader) (content.LogicalPath, int64, error) {
	path, err := content.PathFor(id)
	if err != nil {
		return "", 0, err
	}

	// Buffer the payload; honours cancellation between reads.
	var buf bytes.Buffer
	n, err := io.Copy(&buf, &content.ContextReader{Ctx: ctx, R: r})
	if err != nil {
		return "", 0, fmt.Errorf("failed to buffer content %s: %w", path, err)
	}

	s.mu.Lock()
	s.data[path] = buf.Bytes()
	s.mu.Unlock()

	return path, n, nil
}

// Get returns a reader over the stored payload.
func (s *MemoryContentStore) Get(ctx context.Context, path content.LogicalPath) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.data[path]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("content %s: %w", path, content.ErrContentNotFound)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the payload at path.
func (s *MemoryContentStore) Delete(ctx context.Context, path content.LogicalPath) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[path]; !ok {
		return false, nil
	}
	delete(s.data, path)
	return true, nil
}

// List returns every stored path in lexical order.
func (s *MemoryContentStore) List(ctx context.Context) ([]content.LogicalPath, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	paths := make([]content.LogicalPath, 0, len(s.data))
	for p := range s.data {
		paths = append(paths, p)
	}
	s.mu.RUnlock()

	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })
	return paths, nil
}

// Stats reports the number of payloads and their total size.
func (s *MemoryContentStore) Stats(ctx context.Context) (*content.StorageStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var used uint64
	for _, data := range s.data {
		used += uint64(len(data))
	}

	return &content.StorageStats{
		ContentCount: uint64(len(s.data)),
		UsedSize:     used,
	}, nil
}

// Close drops all payloads.
func (s *MemoryContentStore) Close() error {
	s.mu.Lock()
	s.data = make(map[content.LogicalPath][]byte)
	s.mu.Unlock()
	return nil
}
