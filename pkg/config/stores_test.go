package config

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/dittovault/pkg/store/content"
	contentfs "github.com/marmos91/dittovault/pkg/store/content/fs"
	"github.com/marmos91/dittovault/pkg/store/metadata/badger"
	"github.com/marmos91/dittovault/pkg/store/metadata/cache"
	metadatamemory "github.com/marmos91/dittovault/pkg/store/metadata/memory"
)

func TestCreateContentStore_Filesystem(t *testing.T) {
	cfg := &ContentConfig{
		Type:       "filesystem",
		Filesystem: map[string]any{"path": t.TempDir(), "compress": "true"},
	}

	store, err := CreateContentStore(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("CreateContentStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	if _, ok := store.(*contentfs.FSContentStore); !ok {
		t.Fatalf("Expected *fs.FSContentStore, got %T", store)
	}
	if _, ok := store.(content.Lister); !ok {
		t.Error("Expected filesystem store to support listing")
	}
}

func TestCreateContentStore_Memory(t *testing.T) {
	store, err := CreateContentStore(context.Background(), &ContentConfig{Type: "memory"}, nil)
	if err != nil {
		t.Fatalf("CreateContentStore failed: %v", err)
	}
	_ = store.Close()
}

func TestCreateContentStore_Errors(t *testing.T) {
	ctx := context.Background()

	if _, err := CreateContentStore(ctx, &ContentConfig{Type: "tape"}, nil); err == nil {
		t.Error("Expected error for unknown content type")
	}

	_, err := CreateContentStore(ctx, &ContentConfig{Type: "filesystem", Filesystem: map[string]any{}}, nil)
	if err == nil || !strings.Contains(err.Error(), "path is required") {
		t.Errorf("Expected missing path error, got: %v", err)
	}

	_, err = CreateContentStore(ctx, &ContentConfig{Type: "s3", S3: map[string]any{"region": "us-east-1"}}, nil)
	if err == nil || !strings.Contains(err.Error(), "bucket is required") {
		t.Errorf("Expected missing bucket error, got: %v", err)
	}
}

func TestCreateMetadataStore_Memory(t *testing.T) {
	cfg := &MetadataConfig{Type: "memory", Cache: CacheConfig{Enabled: true}}

	index, err := CreateMetadataStore(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("CreateMetadataStore failed: %v", err)
	}
	defer func() { _ = index.Close() }()

	if _, ok := index.(*metadatamemory.MemoryMetadataStore); !ok {
		t.Errorf("Expected the memory index to stay unwrapped, got %T", index)
	}
}

func TestCreateMetadataStore_BadgerWithCache(t *testing.T) {
	cfg := &MetadataConfig{
		Type:   "badger",
		Badger: map[string]any{"db_path": filepath.Join(t.TempDir(), "db")},
		Cache:  CacheConfig{Enabled: true, Size: 16, TTL: 0},
	}

	index, err := CreateMetadataStore(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("CreateMetadataStore failed: %v", err)
	}
	defer func() { _ = index.Close() }()

	if _, ok := index.(*cache.CachedIndex); !ok {
		t.Fatalf("Expected *cache.CachedIndex, got %T", index)
	}
}

func TestCreateMetadataStore_BadgerWithoutCache(t *testing.T) {
	cfg := &MetadataConfig{
		Type:   "badger",
		Badger: map[string]any{"in_memory": true},
	}

	index, err := CreateMetadataStore(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("CreateMetadataStore failed: %v", err)
	}
	defer func() { _ = index.Close() }()

	if _, ok := index.(*badger.BadgerMetadataStore); !ok {
		t.Fatalf("Expected *badger.BadgerMetadataStore, got %T", index)
	}
}

func TestCreateMetadataStore_Errors(t *testing.T) {
	ctx := context.Background()

	if _, err := CreateMetadataStore(ctx, &MetadataConfig{Type: "mongodb"}, nil); err == nil {
		t.Error("Expected error for unknown metadata type")
	}

	_, err := CreateMetadataStore(ctx, &MetadataConfig{Type: "postgres", Postgres: map[string]any{}}, nil)
	if err == nil || !strings.Contains(err.Error(), "metadata.postgres") {
		t.Errorf("Expected missing dsn error, got: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := CreateMetadataStore(cancelled, &MetadataConfig{Type: "memory"}, nil); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

func TestCreateEngineAndSweeper(t *testing.T) {
	ctx := context.Background()
	cfg := GetDefaultConfig()
	cfg.Content.Type = "memory"
	cfg.Metadata.Type = "memory"

	index, err := CreateMetadataStore(ctx, &cfg.Metadata, nil)
	if err != nil {
		t.Fatalf("CreateMetadataStore failed: %v", err)
	}
	store, err := CreateContentStore(ctx, &cfg.Content, nil)
	if err != nil {
		t.Fatalf("CreateContentStore failed: %v", err)
	}

	engine, err := CreateEngine(&cfg.Vault, index, store, nil)
	if err != nil {
		t.Fatalf("CreateEngine failed: %v", err)
	}

	sweeper, err := CreateSweeper(&cfg.Sweep, engine, index, store, nil)
	if err != nil {
		t.Fatalf("CreateSweeper failed: %v", err)
	}
	if _, err := sweeper.RunNow(ctx); err != nil {
		t.Errorf("RunNow on empty stores failed: %v", err)
	}
}
