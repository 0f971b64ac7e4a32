// Package metadata defines the index that stores and searches item records.
//
// The index is the source of truth for item metadata: ownership, lifecycle
// status, gallery structure and the logical path of any binary payload. It
// is consulted by the vault before any binary store call.
//
// Implementations:
//   - memory: in-process maps, for tests and development
//   - badger: embedded BadgerDB, single node
//   - postgres: PostgreSQL via pgx, shared between vault instances
package metadata

import (
	"context"
	"time"

	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/store/content"
)

// Index persists item records.
//
// Thread Safety:
// Implementations must be safe for concurrent use. Per-id operations are at
// least last-writer-wins; Update is a read-modify-write that implementations
// run atomically where the backend allows it (transaction or single
// statement). No operation spans multiple items transactionally except
// DeleteInactiveBulk.
//
// Returned items are owned by the caller and may be mutated freely.
type Index interface {
	// Save inserts or replaces the record with item.ID.
	Save(ctx context.Context, item *media.Item) (*media.Item, error)

	// Get returns the record with id, active or not.
	//
	// Returns ErrRecordNotFound when no record exists.
	Get(ctx context.Context, id string) (*media.Item, error)

	// Update loads the record, applies fn and persists the result.
	//
	// If fn returns an error nothing is written and the error is returned
	// unchanged. Returns ErrRecordNotFound when no record exists. fn may run
	// more than once, each time on the latest stored record.
	Update(ctx context.Context, id string, fn func(*media.Item) error) (*media.Item, error)

	// UpdateStatus sets the activated flag and stamps the modification
	// audit fields from change.
	UpdateStatus(ctx context.Context, id string, change StatusChange) error

	// UpdateLogicalPath sets the payload location.
	UpdateLogicalPath(ctx context.Context, id string, path content.LogicalPath) error

	// Search returns records matching q, filtered by q.Visibility inside
	// the index before the size limit is applied.
	Search(ctx context.Context, q Query) ([]*media.Item, error)

	// ListInactive returns every trashed record allowed by vis.
	ListInactive(ctx context.Context, vis Visibility) ([]*media.Item, error)

	// DeleteByID removes a record. Returns false when none existed.
	DeleteByID(ctx context.Context, id string) (bool, error)

	// DeleteInactiveByID removes a record only if it is still inactive.
	// Returns false when none existed or it has been restored.
	DeleteInactiveByID(ctx context.Context, id string) (bool, error)

	// DeleteInactiveBulk removes every trashed record and returns how many
	// were removed.
	DeleteInactiveBulk(ctx context.Context) (int64, error)

	// LogicalPaths returns the payload location of every record that has
	// one, active or not.
	LogicalPaths(ctx context.Context) ([]content.LogicalPath, error)

	// Close releases the backend.
	Close() error
}

// StatusChange is a trash or restore, with the caller's audit stamp.
type StatusChange struct {
	Active     bool
	ModifiedBy string
	ModifiedAt time.Time
}

// Apply sets the flag and audit fields on item.
func (c StatusChange) Apply(item *media.Item) {
	item.Activated = c.Active
	item.Touch(c.ModifiedBy, c.ModifiedAt)
}

// FreshGetter is implemented by indexes that may serve Get from a cache.
// GetFresh always reads the backing store.
type FreshGetter interface {
	GetFresh(ctx context.Context, id string) (*media.Item, error)
}

// HealthChecker is implemented by indexes that can verify their backend is
// reachable.
type HealthChecker interface {
	Healthcheck(ctx context.Context) error
}
