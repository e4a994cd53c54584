// Package objectstore wraps the S3 API used by the service: streaming reads,
// writes, server-side copies, and deletes against an S3-compatible endpoint.
package objectstore

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes a stored object without its content.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag"`
	LastModified time.Time `json:"lastModified"`
}

// Store is the object-storage capability the rest of the server depends on.
// Implementations map "object/bucket does not exist" conditions to
// common.ErrorNotFound so callers can collapse them with errors.Is.
type Store interface {
	// Get returns the object's content stream and size.
	// The caller must close the stream.
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error)

	// Head returns object metadata without fetching the content.
	Head(ctx context.Context, bucket, key string) (*ObjectInfo, error)

	// Put stores the content read from r under bucket/key.
	Put(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error

	// Copy performs a server-side copy. Returns common.ErrorNotFound when
	// the source object is absent.
	Copy(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error

	// Delete removes the object. Deleting an absent key is not an error.
	Delete(ctx context.Context, bucket, key string) error

	// List returns metadata for all objects under the prefix.
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)

	// EnsureBucket creates the bucket if it does not exist yet.
	EnsureBucket(ctx context.Context, bucket string) error
}
