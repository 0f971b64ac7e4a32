// Package s3 implements S3-based content storage for DittoVault.
//
// Payloads are stored as objects under an optional key prefix, one object per
// logical path. Uploads stream through a part-sized buffer: payloads that fit
// in one part use PutObject, larger ones use a multipart upload that is
// aborted on any failure.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittovault/pkg/store/content"
)

const (
	// DefaultPartSize is the multipart part size used when none is configured
	DefaultPartSize = 10 * 1024 * 1024

	minPartSize = 5 * 1024 * 1024
	maxPartSize = 5 * 1024 * 1024 * 1024
)

// Client is the subset of the S3 API the store uses. *s3.Client satisfies it.
type Client interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, opts ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, opts ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, opts ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3ContentStore implements content.BinaryStore using Amazon S3 or any
// S3-compatible service.
//
// Thread Safety:
// Safe for concurrent use. Each Put owns its own upload session.
type S3ContentStore struct {
	client    Client
	bucket    string
	keyPrefix string
	partSize  int64
	metrics   S3Metrics
}

// S3ContentStoreConfig contains configuration for S3 content store.
type S3ContentStoreConfig struct {
	// Client is the configured S3 client
	Client Client

	// Bucket is the S3 bucket name
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	// Example: "vault/" results in keys like "vault/3f/3f2a..."
	KeyPrefix string

	// PartSize is the size of each part for multipart uploads (default: 10MB)
	// Must be between 5MB and 5GB
	PartSize int64

	// Metrics receives per-operation observations. Nil disables collection.
	Metrics S3Metrics
}

// NewS3ContentStore creates a new S3-based content store.
//
// The bucket must already exist; it is checked with HeadBucket.
func NewS3ContentStore(ctx context.Context, cfg S3ContentStoreConfig) (*S3ContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 client is required")
	}

	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = DefaultPartSize
	}
	if partSize < minPartSize {
		return nil, fmt.Errorf("part size must be at least 5MB, got %d bytes", partSize)
	}
	if partSize > maxPartSize {
		return nil, fmt.Errorf("part size must be at most 5GB, got %d bytes", partSize)
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	// Verify bucket access.
	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	prefix := cfg.KeyPrefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &S3ContentStore{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: prefix,
		partSize:  partSize,
		metrics:   metrics,
	}, nil
}

// objectKey returns the full S3 object key for a logical path.
//
// Example:
//
//	path:   "3f/3f2a9c..."
//	prefix: "vault/"
//	key:    "vault/3f/3f2a9c..."
func (s *S3ContentStore) objectKey(p content.LogicalPath) string {
	return s.keyPrefix + string(p)
}

// logicalPath is the inverse of objectKey.
func (s *S3ContentStore) logicalPath(key string) content.LogicalPath {
	return content.LogicalPath(strings.TrimPrefix(key, s.keyPrefix))
}

// Get downloads the object at path. The body streams from S3; the caller
// must close it.
func (s *S3ContentStore) Get(ctx context.Context, p content.LogicalPath) (rc io.ReadCloser, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("GetObject", time.Since(start), err) }()

	if err := content.ValidatePath(p); err != nil {
		return nil, err
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(p)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("content %s: %w", p, content.ErrContentNotFound)
		}
		return nil, wrapUnavailable("failed to get object", err)
	}

	return &observedBody{body: result.Body, metrics: s.metrics}, nil
}

// Delete removes the object at path.
//
// S3 reports success for missing keys, so existence is checked with
// HeadObject first to honour the "false when nothing existed" contract.
func (s *S3ContentStore) Delete(ctx context.Context, p content.LogicalPath) (existed bool, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("DeleteObject", time.Since(start), err) }()

	if err := content.ValidatePath(p); err != nil {
		return false, err
	}
	key := s.objectKey(p)

	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, wrapUnavailable("failed to check object existence", err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return false, wrapUnavailable("failed to delete object", err)
	}

	return true, nil
}

// List pages through every object under the key prefix.
func (s *S3ContentStore) List(ctx context.Context) ([]content.LogicalPath, error) {
	var paths []content.LogicalPath
	err := s.listObjects(ctx, func(obj types.Object) {
		paths = append(paths, s.logicalPath(aws.ToString(obj.Key)))
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}

// Stats sums object sizes under the key prefix. This lists the whole
// prefix, so it is only meant for occasional maintenance use.
func (s *S3ContentStore) Stats(ctx context.Context) (*content.StorageStats, error) {
	stats := &content.StorageStats{}
	err := s.listObjects(ctx, func(obj types.Object) {
		stats.ContentCount++
		if obj.Size != nil {
			stats.UsedSize += uint64(*obj.Size)
		}
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *S3ContentStore) listObjects(ctx context.Context, fn func(types.Object)) error {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	}
	if s.keyPrefix != "" {
		input.Prefix = aws.String(s.keyPrefix)
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := paginator.NextPage(ctx)
		if err != nil {
			return wrapUnavailable("failed to list objects", err)
		}

		for _, obj := range page.Contents {
			fn(obj)
		}
	}
	return nil
}

// Close is a no-op; the S3 client holds no per-store resources.
func (s *S3ContentStore) Close() error {
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

func wrapUnavailable(msg string, err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, content.ErrUnavailable, err)
}
