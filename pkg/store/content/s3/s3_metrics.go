package s3

import (
	"io"
	"sync"
	"time"
)

// S3Metrics observes the store's calls to S3. Set S3ContentStoreConfig.Metrics
// to nil to disable it.
type S3Metrics interface {
	// ObserveOperation records one store call (Put, GetObject, DeleteObject)
	ObserveOperation(operation string, duration time.Duration, err error)

	// RecordBytes counts payload bytes moved in direction "read" or "write"
	RecordBytes(direction string, bytes int64)

	// RecordMultipartUpload counts upload transitions: "initiated",
	// "completed" or "aborted"
	RecordMultipartUpload(status string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, time.Duration, error) {}
func (noopMetrics) RecordBytes(string, int64)                     {}
func (noopMetrics) RecordMultipartUpload(string)                  {}

// observedBody reports the bytes a caller read from an object body once,
// when the body is closed.
type observedBody struct {
	body    io.ReadCloser
	metrics S3Metrics
	n       int64
	once    sync.Once
}

func (b *observedBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	b.n += int64(n)
	return n, err
}

func (b *observedBody) Close() error {
	err := b.body.Close()
	b.once.Do(func() {
		if b.n > 0 {
			b.metrics.RecordBytes("read", b.n)
		}
	})
	return err
}
