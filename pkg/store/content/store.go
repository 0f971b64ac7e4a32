// Package content defines the binary store used by the vault for item
// payloads.
//
// A BinaryStore persists opaque byte streams and hands back a LogicalPath
// that the metadata index records. Stores know nothing about items, owners or
// galleries: they are addressed by path only.
//
// Implementations:
//   - fs: local filesystem, optional zstd compression
//   - memory: in-process map, for tests and development
//   - s3: Amazon S3 or any S3-compatible service, multipart streaming
package content

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// LogicalPath is the store-relative location of a payload.
//
// Paths are slash separated, relative, and never contain "..". The vault
// treats them as opaque and only stores them in the metadata record.
type LogicalPath string

func (p LogicalPath) String() string {
	return string(p)
}

// BinaryStore persists item payloads.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
// Concurrent Put calls for distinct ids never interfere. Put for the same id
// is not expected: ids are unique per item.
type BinaryStore interface {
	// Put streams r into the store under a path derived from id.
	//
	// Returns the logical path and the number of bytes read from r. A partial
	// write never leaves a readable payload behind: on error the store
	// removes whatever it wrote.
	Put(ctx context.Context, id string, r io.Reader) (LogicalPath, int64, error)

	// Get opens the payload at path. The caller must close the reader.
	//
	// Returns ErrContentNotFound when nothing is stored at path.
	Get(ctx context.Context, path LogicalPath) (io.ReadCloser, error)

	// Delete removes the payload at path.
	//
	// Returns false (and no error) when nothing was stored at path.
	Delete(ctx context.Context, path LogicalPath) (bool, error)

	// Close releases any resources held by the store.
	Close() error
}

// Lister is implemented by stores that can enumerate their payloads.
// The sweeper uses it to find payloads no metadata record points to.
type Lister interface {
	List(ctx context.Context) ([]LogicalPath, error)
}

// StorageStats summarizes what a store holds.
type StorageStats struct {
	// ContentCount is the number of payloads
	ContentCount uint64

	// UsedSize is the total stored bytes (after compression, if any)
	UsedSize uint64
}

// StatsProvider is implemented by stores that can report usage.
type StatsProvider interface {
	Stats(ctx context.Context) (*StorageStats, error)
}

// PathFor derives the logical path of a payload from its item id.
//
// The first two characters of the id become a fan-out directory so that a
// single directory never holds every payload: "3f2a..." becomes "3f/3f2a...".
func PathFor(id string) (LogicalPath, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	if len(id) < 3 {
		return LogicalPath(id), nil
	}
	return LogicalPath(strings.ToLower(id[:2]) + "/" + id), nil
}

// ValidatePath rejects paths that could escape the store root.
func ValidatePath(p LogicalPath) error {
	s := string(p)
	if s == "" || strings.HasPrefix(s, "/") || strings.Contains(s, "\\") {
		return fmt.Errorf("path %q: %w", s, ErrInvalidPath)
	}
	if path.Clean(s) != s {
		return fmt.Errorf("path %q: %w", s, ErrInvalidPath)
	}
	for _, part := range strings.Split(s, "/") {
		if part == ".." || part == "." {
			return fmt.Errorf("path %q: %w", s, ErrInvalidPath)
		}
	}
	return nil
}

func validateID(id string) error {
	if id == "" || strings.ContainsAny(id, "/\\") || id == "." || id == ".." {
		return fmt.Errorf("id %q: %w", id, ErrInvalidPath)
	}
	return nil
}

// CountingReader counts the bytes read through it.
type CountingReader struct {
	R io.Reader
	N int64
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.N += int64(n)
	return n, err
}

// ContextReader fails reads once ctx is done, so long copies stop promptly
// on cancellation.
type ContextReader struct {
	Ctx context.Context
	R   io.Reader
}

func (c *ContextReader) Read(p []byte) (int, error) {
	if err := c.Ctx.Err(); err != nil {
		return 0, err
	}
	return c.R.Read(p)
}
