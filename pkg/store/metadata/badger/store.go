package badger

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// purgeBatchSize bounds the number of records deleted per transaction so
// bulk purges never hit badger.ErrTxnTooBig.
const purgeBatchSize = 1000

// BadgerMetadataStore implements metadata.Index on an embedded BadgerDB.
//
// Persistence:
// Records survive restarts. The database directory must not be shared with
// another process.
//
// Thread Safety:
// BadgerDB transactions are serializable snapshot isolated. Update runs its
// read-modify-write inside one transaction and reruns it on the latest
// record after badger.ErrConflict. A conflict that outlasts the retries is
// reported as metadata.ErrUnavailable.
type BadgerMetadataStore struct {
	db *badger.DB
}

// BadgerMetadataStoreConfig contains BadgerDB-specific configuration.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory where BadgerDB stores its files
	DBPath string `mapstructure:"db_path"`

	// InMemory keeps the database in RAM only (DBPath is ignored)
	InMemory bool `mapstructure:"in_memory"`

	// BlockCacheSizeMB is the block cache size in MB (default: 256)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is the index cache size in MB (default: 128)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`

	// BadgerOptions overrides every option above when set
	BadgerOptions *badger.Options `mapstructure:"-"`
}

// NewBadgerMetadataStore opens (or creates) the database.
func NewBadgerMetadataStore(ctx context.Context, config BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if config.BadgerOptions != nil {
		opts = *config.BadgerOptions
	} else {
		if config.InMemory {
			opts = badger.DefaultOptions("").WithInMemory(true)
		} else {
			if config.DBPath == "" {
				return nil, fmt.Errorf("db_path is required")
			}
			opts = badger.DefaultOptions(config.DBPath)
		}

		opts = opts.WithLoggingLevel(badger.WARNING)
		opts = opts.WithCompression(options.None)

		blockCacheMB := config.BlockCacheSizeMB
		if blockCacheMB == 0 {
			blockCacheMB = 256
		}
		indexCacheMB := config.IndexCacheSizeMB
		if indexCacheMB == 0 {
			indexCacheMB = 128
		}

		opts = opts.WithBlockCacheSize(blockCacheMB << 20)
		opts = opts.WithIndexCacheSize(indexCacheMB << 20)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	return &BadgerMetadataStore{db: db}, nil
}

// translateError maps BadgerDB errors to metadata errors.
func translateError(op, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return fmt.Errorf("%s %s: %w", op, id, metadata.ErrRecordNotFound)
	case errors.Is(err, badger.ErrConflict), errors.Is(err, badger.ErrDBClosed):
		return fmt.Errorf("%s %s: %w: %w", op, id, metadata.ErrUnavailable, err)
	default:
		return fmt.Errorf("%s %s: %w", op, id, err)
	}
}

// maxUpdateAttempts bounds the retries of an Update that lost a commit
// conflict. Every retry follows a commit by another writer.
const maxUpdateAttempts = 100

// putItem writes the record and keeps the inactive marker in sync.
func putItem(txn *badger.Txn, item *media.Item) error {
	data, err := encodeItem(item)
	if err != nil {
		return err
	}
	if err := txn.Set(keyItem(item.ID), data); err != nil {
		return err
	}
	if item.Activated {
		return txn.Delete(keyInactive(item.ID))
	}
	return txn.Set(keyInactive(item.ID), nil)
}

func getItem(txn *badger.Txn, id string) (*media.Item, error) {
	entry, err := txn.Get(keyItem(id))
	if err != nil {
		return nil, err
	}

	var item *media.Item
	err = entry.Value(func(val []byte) error {
		var decodeErr error
		item, decodeErr = decodeItem(val)
		return decodeErr
	})
	return item, err
}

// scanItems decodes every record and passes it to fn.
func scanItems(txn *badger.Txn, fn func(*media.Item) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	prefix := []byte(prefixItem)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var item *media.Item
		err := it.Item().Value(func(val []byte) error {
			var decodeErr error
			item, decodeErr = decodeItem(val)
			return decodeErr
		})
		if err != nil {
			return err
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	return nil
}

// inactiveIDs lists ids carrying the inactive marker (keys only).
func inactiveIDs(txn *badger.Txn) []string {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []string
	prefix := []byte(prefixInactive)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		ids = append(ids, idFromKey(it.Item().Key(), prefixInactive))
	}
	return ids
}

func (s *BadgerMetadataStore) Save(ctx context.Context, item *media.Item) (*media.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if item == nil || item.ID == "" {
		return nil, fmt.Errorf("save: %w", metadata.ErrInvalidRecord)
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return putItem(txn, item)
	})
	if err != nil {
		return nil, translateError("save", item.ID, err)
	}
	return item.Clone(), nil
}

func (s *BadgerMetadataStore) Get(ctx context.Context, id string) (*media.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var item *media.Item
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		item, err = getItem(txn, id)
		return err
	})
	if err != nil {
		return nil, translateError("get", id, err)
	}
	return item, nil
}

// Update runs fn inside a single read-write transaction.
func (s *BadgerMetadataStore) Update(ctx context.Context, id string, fn func(*media.Item) error) (*media.Item, error) {
	var err error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var updated *media.Item
		var fnErr error
		err = s.db.Update(func(txn *badger.Txn) error {
			item, err := getItem(txn, id)
			if err != nil {
				return err
			}
			if err := fn(item); err != nil {
				fnErr = err
				return err
			}
			item.ID = id
			updated = item
			return putItem(txn, item)
		})
		if fnErr != nil {
			return nil, fnErr
		}
		if err == nil {
			return updated.Clone(), nil
		}
		// A concurrent commit touched the record: rerun fn on the new state.
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	return nil, translateError("update", id, err)
}

func (s *BadgerMetadataStore) UpdateStatus(ctx context.Context, id string, change metadata.StatusChange) error {
	_, err := s.Update(ctx, id, func(item *media.Item) error {
		change.Apply(item)
		return nil
	})
	return err
}

func (s *BadgerMetadataStore) UpdateLogicalPath(ctx context.Context, id string, path content.LogicalPath) error {
	_, err := s.Update(ctx, id, func(item *media.Item) error {
		item.LogicalPath = string(path)
		return nil
	})
	return err
}

// Search scans all records in one read transaction, applying q while
// scanning so the size cut only ever sees visible matches.
func (s *BadgerMetadataStore) Search(ctx context.Context, q metadata.Query) ([]*media.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := []*media.Item{}
	err := s.db.View(func(txn *badger.Txn) error {
		return scanItems(txn, func(item *media.Item) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if q.Matches(item) {
				results = append(results, item)
			}
			return nil
		})
	})
	if err != nil {
		return nil, translateError("search", q.Text, err)
	}

	metadata.SortResults(results)
	if limit := q.Limit(); len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *BadgerMetadataStore) ListInactive(ctx context.Context, vis metadata.Visibility) ([]*media.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := []*media.Item{}
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range inactiveIDs(txn) {
			item, err := getItem(txn, id)
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if vis.Allows(item) {
				results = append(results, item)
			}
		}
		return nil
	})
	if err != nil {
		return nil, translateError("list inactive", "", err)
	}

	metadata.SortResults(results)
	return results, nil
}

func (s *BadgerMetadataStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	existed := true
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(keyItem(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				existed = false
				return nil
			}
			return err
		}
		if err := txn.Delete(keyItem(id)); err != nil {
			return err
		}
		return txn.Delete(keyInactive(id))
	})
	if err != nil {
		return false, translateError("delete", id, err)
	}
	return existed, nil
}

// DeleteInactiveByID checks the activated flag and deletes in one
// transaction. A concurrent restore makes the commit conflict.
func (s *BadgerMetadataStore) DeleteInactiveByID(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	deleted := false
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := getItem(txn, id)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if item.Activated {
			return nil
		}
		if err := txn.Delete(keyItem(id)); err != nil {
			return err
		}
		if err := txn.Delete(keyInactive(id)); err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, translateError("delete", id, err)
	}
	return deleted, nil
}

// DeleteInactiveBulk deletes trashed records in batches. Each record is
// rechecked inside its batch transaction, so a record restored after the
// scan survives.
func (s *BadgerMetadataStore) DeleteInactiveBulk(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var ids []string
	if err := s.db.View(func(txn *badger.Txn) error {
		ids = inactiveIDs(txn)
		return nil
	}); err != nil {
		return 0, translateError("purge", "", err)
	}

	var deleted int64
	for start := 0; start < len(ids); start += purgeBatchSize {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}

		end := min(start+purgeBatchSize, len(ids))
		var n int64
		err := s.db.Update(func(txn *badger.Txn) error {
			n = 0
			for _, id := range ids[start:end] {
				item, err := getItem(txn, id)
				if errors.Is(err, badger.ErrKeyNotFound) {
					if err := txn.Delete(keyInactive(id)); err != nil {
						return err
					}
					continue
				}
				if err != nil {
					return err
				}
				if item.Activated {
					continue
				}
				if err := txn.Delete(keyItem(id)); err != nil {
					return err
				}
				if err := txn.Delete(keyInactive(id)); err != nil {
					return err
				}
				n++
			}
			return nil
		})
		if err != nil {
			return deleted, translateError("purge", "", err)
		}
		deleted += n
	}
	return deleted, nil
}

func (s *BadgerMetadataStore) LogicalPaths(ctx context.Context) ([]content.LogicalPath, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var paths []content.LogicalPath
	err := s.db.View(func(txn *badger.Txn) error {
		return scanItems(txn, func(item *media.Item) error {
			if item.LogicalPath != "" {
				paths = append(paths, content.LogicalPath(item.LogicalPath))
			}
			return nil
		})
	})
	if err != nil {
		return nil, translateError("logical paths", "", err)
	}
	return paths, nil
}

// Healthcheck fails once the database has been closed.
func (s *BadgerMetadataStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return fmt.Errorf("badger: %w: %w", metadata.ErrUnavailable, badger.ErrDBClosed)
	}
	return nil
}

// Close flushes and closes the database.
func (s *BadgerMetadataStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}
