package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound reports that no object exists at the requested key.
var ErrNotFound = errors.New("object not found")

// Store abstracts S3-compatible object storage. The content hash travels
// with each object as user metadata so that verification can run on Stat
// alone, without downloading bodies.
type Store interface {
	Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentSHA256 string) error
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, ObjectInfo, error)
	Stat(ctx context.Context, bucket, key string) (ObjectInfo, error)
}

type ObjectInfo struct {
	Key           string
	Size          int64
	ETag          string
	ContentSHA256 string
	LastModified  time.Time
}
