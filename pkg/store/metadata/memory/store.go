package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// MemoryMetadataStore implements metadata.Index with an in-process map.
//
// Records are stored as deep copies and handed out as deep copies, so callers
// never share memory with the index.
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Update holds the write
// lock for the whole read-modify-write, so concurrent updates of one record
// are serialized.
type MemoryMetadataStore struct {
	mu      sync.RWMutex
	records map[string]*media.Item
}

// NewMemoryMetadataStore creates an empty index.
func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{
		records: make(map[string]*media.Item),
	}
}

func (s *MemoryMetadataStore) Save(ctx context.Context, item *media.Item) (*media.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if item == nil || item.ID == "" {
		return nil, fmt.Errorf("save: %w", metadata.ErrInvalidRecord)
	}

	s.mu.Lock()
	s.records[item.ID] = item.Clone()
	s.mu.Unlock()

	return item.Clone(), nil
}

func (s *MemoryMetadataStore) Get(ctx context.Context, id string) (*media.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, metadata.ErrRecordNotFound)
	}
	return item.Clone(), nil
}

func (s *MemoryMetadataStore) Update(ctx context.Context, id string, fn func(*media.Item) error) (*media.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, metadata.ErrRecordNotFound)
	}

	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.ID = id

	s.records[id] = working
	return working.Clone(), nil
}

func (s *MemoryMetadataStore) UpdateStatus(ctx context.Context, id string, change metadata.StatusChange) error {
	_, err := s.Update(ctx, id, func(item *media.Item) error {
		change.Apply(item)
		return nil
	})
	return err
}

func (s *MemoryMetadataStore) UpdateLogicalPath(ctx context.Context, id string, path content.LogicalPath) error {
	_, err := s.Update(ctx, id, func(item *media.Item) error {
		item.LogicalPath = string(path)
		return nil
	})
	return err
}

// Search scans every record. Filters run before the size cut.
func (s *MemoryMetadataStore) Search(ctx context.Context, q metadata.Query) ([]*media.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := s.collect(q.Matches)
	metadata.SortResults(results)

	if limit := q.Limit(); len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemoryMetadataStore) ListInactive(ctx context.Context, vis metadata.Visibility) ([]*media.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := s.collect(func(item *media.Item) bool {
		return !item.Activated && vis.Allows(item)
	})
	metadata.SortResults(results)
	return results, nil
}

func (s *MemoryMetadataStore) collect(keep func(*media.Item) bool) []*media.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []*media.Item{}
	for _, item := range s.records {
		if keep(item) {
			results = append(results, item.Clone())
		}
	}
	return results
}

func (s *MemoryMetadataStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return false, nil
	}
	delete(s.records, id)
	return true, nil
}

func (s *MemoryMetadataStore) DeleteInactiveByID(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.records[id]
	if !ok || item.Activated {
		return false, nil
	}
	delete(s.records, id)
	return true, nil
}

func (s *MemoryMetadataStore) DeleteInactiveBulk(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, item := range s.records {
		if !item.Activated {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryMetadataStore) LogicalPaths(ctx context.Context) ([]content.LogicalPath, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	paths := make([]content.LogicalPath, 0, len(s.records))
	for _, item := range s.records {
		if item.LogicalPath != "" {
			paths = append(paths, content.LogicalPath(item.LogicalPath))
		}
	}
	s.mu.RUnlock()

	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })
	return paths, nil
}

// Len returns the number of records, active or not.
func (s *MemoryMetadataStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryMetadataStore) Close() error {
	return nil
}

// Healthcheck succeeds unless ctx is done; there is no backend to probe.
func (s *MemoryMetadataStore) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}
