// Package cache wraps a metadata.Index with a read-through LRU for Get.
//
// Entries expire after a TTL so that several vault instances sharing one
// backend converge without cross-instance invalidation. Writes made through
// the wrapper invalidate or refresh their entry immediately.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/marmos91/dittovault/pkg/media"
	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

const (
	DefaultSize = 10000
	DefaultTTL  = 30 * time.Second
)

// Metrics receives cache hit/miss events. Nil disables reporting.
type Metrics interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// Config configures the cache.
type Config struct {
	Size    int           `mapstructure:"size" validate:"gte=0"`
	TTL     time.Duration `mapstructure:"ttl" validate:"gte=0"`
	Metrics Metrics       `mapstructure:"-"`
}

// CachedIndex is a metadata.Index that serves Get from memory when it can.
//
// Cached records are never handed out directly: every hit returns a clone.
type CachedIndex struct {
	inner   metadata.Index
	lru     *expirable.LRU[string, *media.Item]
	metrics Metrics
}

var (
	_ metadata.Index         = (*CachedIndex)(nil)
	_ metadata.FreshGetter   = (*CachedIndex)(nil)
	_ metadata.HealthChecker = (*CachedIndex)(nil)
)

// New wraps inner.
func New(inner metadata.Index, cfg Config) (*CachedIndex, error) {
	if inner == nil {
		return nil, fmt.Errorf("cache: inner index is required")
	}
	size := cfg.Size
	if size == 0 {
		size = DefaultSize
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	return &CachedIndex{
		inner:   inner,
		lru:     expirable.NewLRU[string, *media.Item](size, nil, ttl),
		metrics: cfg.Metrics,
	}, nil
}

// Len returns the number of cached records.
func (c *CachedIndex) Len() int {
	return c.lru.Len()
}

func (c *CachedIndex) Get(ctx context.Context, id string) (*media.Item, error) {
	if item, ok := c.lru.Get(id); ok {
		if c.metrics != nil {
			c.metrics.RecordCacheHit()
		}
		return item.Clone(), nil
	}
	if c.metrics != nil {
		c.metrics.RecordCacheMiss()
	}

	item, err := c.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.lru.Add(id, item.Clone())
	return item, nil
}

// GetFresh reads the wrapped index and replaces any cached copy. Another
// vault instance sharing the backend may have changed the record.
func (c *CachedIndex) GetFresh(ctx context.Context, id string) (*media.Item, error) {
	item, err := c.inner.Get(ctx, id)
	if err != nil {
		c.lru.Remove(id)
		return nil, err
	}
	c.lru.Add(id, item.Clone())
	return item, nil
}

func (c *CachedIndex) Save(ctx context.Context, item *media.Item) (*media.Item, error) {
	saved, err := c.inner.Save(ctx, item)
	if err != nil {
		if item != nil {
			c.lru.Remove(item.ID)
		}
		return nil, err
	}
	c.lru.Add(saved.ID, saved.Clone())
	return saved, nil
}

func (c *CachedIndex) Update(ctx context.Context, id string, fn func(*media.Item) error) (*media.Item, error) {
	updated, err := c.inner.Update(ctx, id, fn)
	if err != nil {
		c.lru.Remove(id)
		return nil, err
	}
	c.lru.Add(id, updated.Clone())
	return updated, nil
}

func (c *CachedIndex) UpdateStatus(ctx context.Context, id string, change metadata.StatusChange) error {
	defer c.lru.Remove(id)
	return c.inner.UpdateStatus(ctx, id, change)
}

func (c *CachedIndex) UpdateLogicalPath(ctx context.Context, id string, path content.LogicalPath) error {
	defer c.lru.Remove(id)
	return c.inner.UpdateLogicalPath(ctx, id, path)
}

func (c *CachedIndex) Search(ctx context.Context, q metadata.Query) ([]*media.Item, error) {
	return c.inner.Search(ctx, q)
}

func (c *CachedIndex) ListInactive(ctx context.Context, vis metadata.Visibility) ([]*media.Item, error) {
	return c.inner.ListInactive(ctx, vis)
}

func (c *CachedIndex) DeleteByID(ctx context.Context, id string) (bool, error) {
	defer c.lru.Remove(id)
	return c.inner.DeleteByID(ctx, id)
}

func (c *CachedIndex) DeleteInactiveByID(ctx context.Context, id string) (bool, error) {
	defer c.lru.Remove(id)
	return c.inner.DeleteInactiveByID(ctx, id)
}

// DeleteInactiveBulk drops the whole cache: the removed ids are not known.
func (c *CachedIndex) DeleteInactiveBulk(ctx context.Context) (int64, error) {
	defer c.lru.Purge()
	return c.inner.DeleteInactiveBulk(ctx)
}

func (c *CachedIndex) LogicalPaths(ctx context.Context) ([]content.LogicalPath, error) {
	return c.inner.LogicalPaths(ctx)
}

// Healthcheck delegates to the wrapped index when it supports health checks.
func (c *CachedIndex) Healthcheck(ctx context.Context) error {
	if hc, ok := c.inner.(metadata.HealthChecker); ok {
		return hc.Healthcheck(ctx)
	}
	return nil
}

func (c *CachedIndex) Close() error {
	c.lru.Purge()
	return c.inner.Close()
}
