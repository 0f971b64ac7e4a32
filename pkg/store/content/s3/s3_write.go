package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/dittovault/pkg/store/content"
)

// abortTimeout bounds cleanup of a failed multipart upload. Cleanup runs on a
// fresh context because the request context may already be cancelled.
const abortTimeout = 30 * time.Second

// Put streams r to S3.
//
// Write Behavior:
//   - Data is buffered until partSize is reached
//   - The first full part starts a multipart upload; each later full part is
//     uploaded as it fills
//   - Payloads smaller than one part are sent with a single PutObject
//
// Memory Usage:
//   - ~1x partSize per concurrent Put (default 10MB)
func (s *S3ContentStore) Put(ctx context.Context, id string, r io.Reader) (path content.LogicalPath, n int64, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("Put", time.Since(start), err) }()

	path, err = content.PathFor(id)
	if err != nil {
		return "", 0, err
	}

	w := &s3Writer{
		store:  s,
		ctx:    ctx,
		key:    s.objectKey(path),
		buffer: &bytes.Buffer{},
	}

	n, err = io.Copy(w, &content.ContextReader{Ctx: ctx, R: r})
	if err != nil {
		w.abort()
		return "", 0, fmt.Errorf("failed to upload content %s: %w", path, err)
	}

	if err := w.Close(); err != nil {
		return "", 0, fmt.Errorf("failed to upload content %s: %w", path, err)
	}

	return path, n, nil
}

// s3Writer implements io.WriteCloser for streaming writes to S3.
type s3Writer struct {
	store    *S3ContentStore
	ctx      context.Context
	key      string
	buffer   *bytes.Buffer
	uploadID string
	parts    []types.CompletedPart
	err      error
}

func (w *s3Writer) Write(p []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}

	n, _ := w.buffer.Write(p)

	for int64(w.buffer.Len()) >= w.store.partSize {
		if err := w.uploadPart(w.buffer.Next(int(w.store.partSize))); err != nil {
			w.err = err
			return n, err
		}
	}

	return n, nil
}

func (w *s3Writer) uploadPart(data []byte) error {
	if w.uploadID == "" {
		result, err := w.store.client.CreateMultipartUpload(w.ctx, &s3.CreateMultipartUploadInput{
			Bucket: aws.String(w.store.bucket),
			Key:    aws.String(w.key),
		})
		if err != nil {
			return wrapUnavailable("failed to create multipart upload", err)
		}
		w.uploadID = aws.ToString(result.UploadId)
		w.store.metrics.RecordMultipartUpload("initiated")
	}

	partNumber := int32(len(w.parts) + 1)
	result, err := w.store.client.UploadPart(w.ctx, &s3.UploadPartInput{
		Bucket:     aws.String(w.store.bucket),
		Key:        aws.String(w.key),
		UploadId:   aws.String(w.uploadID),
		PartNumber: aws.Int32(partNumber),
		Body:       bytes.NewReader(data),
	})
	if err != nil {
		return wrapUnavailable(fmt.Sprintf("failed to upload part %d", partNumber), err)
	}

	w.parts = append(w.parts, types.CompletedPart{
		ETag:       result.ETag,
		PartNumber: aws.Int32(partNumber),
	})
	w.store.metrics.RecordBytes("write", int64(len(data)))
	return nil
}

func (w *s3Writer) Close() error {
	if w.err != nil {
		w.abort()
		return w.err
	}

	// Small payload: single PutObject.
	if w.uploadID == "" {
		data := w.buffer.Bytes()
		_, err := w.store.client.PutObject(w.ctx, &s3.PutObjectInput{
			Bucket:        aws.String(w.store.bucket),
			Key:           aws.String(w.key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
		})
		if err != nil {
			w.err = wrapUnavailable("failed to put object", err)
			return w.err
		}
		w.store.metrics.RecordBytes("write", int64(len(data)))
		return nil
	}

	// Multipart: flush the tail and complete.
	if w.buffer.Len() > 0 {
		if err := w.uploadPart(w.buffer.Bytes()); err != nil {
			w.err = err
			w.abort()
			return err
		}
		w.buffer.Reset()
	}

	_, err := w.store.client.CompleteMultipartUpload(w.ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(w.store.bucket),
		Key:      aws.String(w.key),
		UploadId: aws.String(w.uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{
			Parts: w.parts,
		},
	})
	if err != nil {
		w.err = wrapUnavailable("failed to complete multipart upload", err)
		w.abort()
		return w.err
	}

	w.store.metrics.RecordMultipartUpload("completed")
	return nil
}

// abort cancels an in-progress multipart upload. It is idempotent.
func (w *s3Writer) abort() {
	if w.uploadID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), abortTimeout)
	defer cancel()

	_, err := w.store.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(w.store.bucket),
		Key:      aws.String(w.key),
		UploadId: aws.String(w.uploadID),
	})
	var noSuchUpload *types.NoSuchUpload
	if err != nil && !errors.As(err, &noSuchUpload) {
		return
	}

	w.uploadID = ""
	w.store.metrics.RecordMultipartUpload("aborted")
}
