// Package postgres implements the metadata index on PostgreSQL.
//
// Each record is stored as a JSONB document alongside the columns that
// searches filter and sort on: owner, scope, status, modification date and a
// pre-lowered search_text. Several vault instances can share one database.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// DBTX is the subset of pgx shared by pools and transactions.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresMetadataStoreConfig configures the PostgreSQL index.
type PostgresMetadataStoreConfig struct {
	// DSN is a postgres:// connection URL
	DSN string `mapstructure:"dsn" validate:"required"`

	// MaxConns caps the pool size. Zero keeps the pgx default.
	MaxConns int32 `mapstructure:"max_conns" validate:"gte=0"`

	// AutoMigrate applies the embedded schema migrations on open.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// PostgresMetadataStore implements metadata.Index on a pgx connection pool.
type PostgresMetadataStore struct {
	pool *pgxpool.Pool
}

// NewPostgresMetadataStore connects, pings and optionally migrates.
func NewPostgresMetadataStore(ctx context.Context, cfg PostgresMetadataStoreConfig) (*PostgresMetadataStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	if cfg.AutoMigrate {
		if err := Migrate(cfg.DSN); err != nil {
			return nil, err
		}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.Info("Connected to postgres metadata index (max_conns=%d)", poolCfg.MaxConns)
	return &PostgresMetadataStore{pool: pool}, nil
}

const selectRecord = `SELECT record FROM media_items`

const upsertRecord = `
INSERT INTO media_items (id, created_by, access_scope, activated, logical_path, modification_date, search_text, record)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
ON CONFLICT (id) DO UPDATE SET
    created_by = EXCLUDED.created_by,
    access_scope = EXCLUDED.access_scope,
    activated = EXCLUDED.activated,
    logical_path = EXCLUDED.logical_path,
    modification_date = EXCLUDED.modification_date,
    search_text = EXCLUDED.search_text,
    record = EXCLUDED.record`

func writeItem(ctx context.Context, db DBTX, item *media.Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", item.ID, metadata.ErrInvalidRecord)
	}
	_, err = db.Exec(ctx, upsertRecord,
		item.ID,
		item.CreatedBy,
		string(item.AccessScope),
		item.Activated,
		string(item.LogicalPath),
		item.ModificationDate,
		metadata.SearchText(item),
		string(data),
	)
	return translateError(err, item.ID)
}

func (s *PostgresMetadataStore) Save(ctx context.Context, item *media.Item) (*media.Item, error) {
	if item == nil || item.ID == "" {
		return nil, fmt.Errorf("save: %w", metadata.ErrInvalidRecord)
	}
	if err := writeItem(ctx, s.pool, item); err != nil {
		return nil, err
	}
	return item.Clone(), nil
}

func (s *PostgresMetadataStore) Get(ctx context.Context, id string) (*media.Item, error) {
	row := s.pool.QueryRow(ctx, selectRecord+` WHERE id = $1`, id)
	return scanItem(row, id)
}

// Update locks the row for the duration of fn.
func (s *PostgresMetadataStore) Update(ctx context.Context, id string, fn func(*media.Item) error) (*media.Item, error) {
	var result *media.Item
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		item, err := scanItem(tx.QueryRow(ctx, selectRecord+` WHERE id = $1 FOR UPDATE`, id), id)
		if err != nil {
			return err
		}
		if err := fn(item); err != nil {
			return err
		}
		item.ID = id
		if err := writeItem(ctx, tx, item); err != nil {
			return err
		}
		result = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresMetadataStore) UpdateStatus(ctx context.Context, id string, change metadata.StatusChange) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE media_items
SET activated = $2,
    modification_date = $4,
    record = jsonb_set(jsonb_set(jsonb_set(record,
        '{activated}', to_jsonb($2::boolean)),
        '{modifiedBy}', to_jsonb($3::text)),
        '{modificationDate}', to_jsonb($4::timestamptz))
WHERE id = $1`, id, change.Active, change.ModifiedBy, change.ModifiedAt)
	return checkAffected(tag, err, id)
}

func (s *PostgresMetadataStore) UpdateLogicalPath(ctx context.Context, id string, path content.LogicalPath) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE media_items
SET logical_path = $2, record = jsonb_set(record, '{logicalPath}', to_jsonb($2::text))
WHERE id = $1`, id, string(path))
	return checkAffected(tag, err, id)
}

func (s *PostgresMetadataStore) Search(ctx context.Context, q metadata.Query) ([]*media.Item, error) {
	where, args := buildSearchWhere(q, 1)
	sql := fmt.Sprintf("%s %s ORDER BY modification_date DESC, id ASC LIMIT $%d",
		selectRecord, where, len(args)+1)
	args = append(args, q.Limit())
	return s.queryItems(ctx, sql, args...)
}

func (s *PostgresMetadataStore) ListInactive(ctx context.Context, vis metadata.Visibility) ([]*media.Item, error) {
	conditions := []string{"activated = FALSE"}
	visClause, args := buildVisibility(vis, 1)
	if visClause != "" {
		conditions = append(conditions, visClause)
	}
	sql := selectRecord + " WHERE " + strings.Join(conditions, " AND ") +
		" ORDER BY modification_date DESC, id ASC"
	return s.queryItems(ctx, sql, args...)
}

func (s *PostgresMetadataStore) DeleteByID(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM media_items WHERE id = $1`, id)
	if err != nil {
		return false, translateError(err, id)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresMetadataStore) DeleteInactiveByID(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM media_items WHERE id = $1 AND activated = FALSE`, id)
	if err != nil {
		return false, translateError(err, id)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresMetadataStore) DeleteInactiveBulk(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM media_items WHERE activated = FALSE`)
	if err != nil {
		return 0, translateError(err, "")
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresMetadataStore) LogicalPaths(ctx context.Context) ([]content.LogicalPath, error) {
	rows, err := s.pool.Query(ctx, `SELECT logical_path FROM media_items WHERE logical_path <> '' ORDER BY logical_path`)
	if err != nil {
		return nil, translateError(err, "")
	}
	paths, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (content.LogicalPath, error) {
		var p string
		err := row.Scan(&p)
		return content.LogicalPath(p), err
	})
	if err != nil {
		return nil, translateError(err, "")
	}
	return paths, nil
}

// Healthcheck pings the database.
func (s *PostgresMetadataStore) Healthcheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w: %v", metadata.ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresMetadataStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresMetadataStore) queryItems(ctx context.Context, sql string, args ...any) ([]*media.Item, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, translateError(err, "")
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*media.Item, error) {
		return scanItem(row, "")
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func scanItem(row pgx.Row, id string) (*media.Item, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		return nil, translateError(err, id)
	}
	var item media.Item
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, metadata.ErrInvalidRecord)
	}
	return &item, nil
}

func checkAffected(tag pgconn.CommandTag, err error, id string) error {
	if err != nil {
		return translateError(err, id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("record %s: %w", id, metadata.ErrRecordNotFound)
	}
	return nil
}

// translateError maps pgx errors onto the metadata sentinels. Context
// cancellation passes through unchanged.
func translateError(err error, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("record %s: %w", id, metadata.ErrRecordNotFound)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, metadata.ErrRecordNotFound), errors.Is(err, metadata.ErrInvalidRecord):
		return err
	}
	return fmt.Errorf("%w: %v", metadata.ErrUnavailable, err)
}
