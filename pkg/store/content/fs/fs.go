// Package fs implements filesystem-based content storage for DittoVault.
//
// Payloads are written to a temporary file next to their final location and
// renamed into place once fully written and synced, so a crash mid-upload
// never leaves a truncated payload at a logical path.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/marmos91/dittovault/pkg/store/content"
)

// tmpPrefix marks in-flight uploads. List skips them.
const tmpPrefix = ".tmp-"

// zstdSuffix is appended to the file name of compressed payloads. The
// logical path never carries it.
const zstdSuffix = ".zst"

// FSContentStoreConfig configures the filesystem store.
type FSContentStoreConfig struct {
	// BasePath is the root directory for payloads
	BasePath string

	// Compress enables zstd compression of new payloads.
	// Reads detect compressed payloads regardless of this setting.
	Compress bool
}

// FSContentStore implements content.BinaryStore using the local filesystem.
//
// Thread Safety:
// Safe for concurrent use. Each Put writes to its own temporary file and
// publishes with an atomic rename.
type FSContentStore struct {
	basePath string
	compress bool
}

// NewFSContentStore creates the base directory (0755) if needed and returns
// a store rooted there.
func NewFSContentStore(ctx context.Context, cfg FSContentStoreConfig) (*FSContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.BasePath == "" {
		return nil, fmt.Errorf("base path is required")
	}

	if err := os.MkdirAll(cfg.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FSContentStore{
		basePath: cfg.BasePath,
		compress: cfg.Compress,
	}, nil
}

// getFilePath maps a logical path to its location under the base directory.
func (r *FSContentStore) getFilePath(p content.LogicalPath) (string, error) {
	if err := content.ValidatePath(p); err != nil {
		return "", err
	}
	return filepath.Join(r.basePath, filepath.FromSlash(string(p))), nil
}

// Put streams r to a temporary file, then renames it into place.
func (r *FSContentStore) Put(ctx context.Context, id string, src io.Reader) (content.LogicalPath, int64, error) {
	logical, err := content.PathFor(id)
	if err != nil {
		return "", 0, err
	}
	dest, err := r.getFilePath(logical)
	if err != nil {
		return "", 0, err
	}
	if r.compress {
		dest += zstdSuffix
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create directory for %s: %w", logical, err)
	}

	// Stream into a temp file in the destination directory.
	tmp, err := os.CreateTemp(filepath.Dir(dest), tmpPrefix+"*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file for %s: %w", logical, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	counter := &content.CountingReader{R: &content.ContextReader{Ctx: ctx, R: src}}
	if err := r.copyPayload(tmp, counter); err != nil {
		cleanup()
		return "", 0, fmt.Errorf("failed to write content %s: %w", logical, err)
	}

	// Sync, then rename into place.
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", 0, fmt.Errorf("failed to sync content %s: %w", logical, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", 0, fmt.Errorf("failed to close content %s: %w", logical, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return "", 0, fmt.Errorf("failed to publish content %s: %w", logical, err)
	}

	return logical, counter.N, nil
}

func (r *FSContentStore) copyPayload(dst io.Writer, src io.Reader) error {
	if !r.compress {
		_, err := io.Copy(dst, src)
		return err
	}

	enc, err := zstd.NewWriter(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(enc, src); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// Get opens the payload at path. Payloads stored compressed are decoded
// transparently, whatever the current Compress setting.
func (r *FSContentStore) Get(ctx context.Context, p content.LogicalPath) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	full, err := r.getFilePath(p)
	if err != nil {
		return nil, err
	}

	if f, err := os.Open(full + zstdSuffix); err == nil {
		dec, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("failed to open compressed content %s: %w", p, err)
		}
		return &zstdReader{dec: dec, file: f}, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to open content %s: %w", p, err)
	}

	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("content %s: %w", p, content.ErrContentNotFound)
		}
		return nil, fmt.Errorf("failed to open content %s: %w", p, err)
	}
	return f, nil
}

// Delete removes the payload.
func (r *FSContentStore) Delete(ctx context.Context, p content.LogicalPath) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	full, err := r.getFilePath(p)
	if err != nil {
		return false, err
	}

	removed := false
	for _, name := range []string{full, full + zstdSuffix} {
		if err := os.Remove(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return removed, fmt.Errorf("failed to delete content %s: %w", p, err)
		}
		removed = true
	}
	// Fan-out directories stay behind; a concurrent Put may be about to
	// create its temp file in them.
	return removed, nil
}

// List walks the base directory, skipping in-flight uploads.
func (r *FSContentStore) List(ctx context.Context) ([]content.LogicalPath, error) {
	var paths []content.LogicalPath
	err := r.walk(ctx, func(rel string, _ fs.FileInfo) {
		paths = append(paths, content.LogicalPath(rel))
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// Stats counts payloads and their on-disk size.
func (r *FSContentStore) Stats(ctx context.Context) (*content.StorageStats, error) {
	stats := &content.StorageStats{}
	err := r.walk(ctx, func(_ string, info fs.FileInfo) {
		stats.ContentCount++
		stats.UsedSize += uint64(info.Size())
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *FSContentStore) walk(ctx context.Context, fn func(rel string, info fs.FileInfo)) error {
	return filepath.WalkDir(r.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tmpPrefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(r.basePath, path)
		if err != nil {
			return err
		}
		fn(strings.TrimSuffix(filepath.ToSlash(rel), zstdSuffix), info)
		return nil
	})
}

// Close is a no-op; the filesystem store holds no open handles.
func (r *FSContentStore) Close() error {
	return nil
}

type zstdReader struct {
	dec  *zstd.Decoder
	file *os.File
}

func (z *zstdReader) Read(p []byte) (int, error) {
	return z.dec.Read(p)
}

func (z *zstdReader) Close() error {
	z.dec.Close()
	return z.file.Close()
}
