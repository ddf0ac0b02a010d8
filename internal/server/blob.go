package server

import (
	"context"
	"errors"
	"io"
)

// errBlobNotFound signals that a path has no object behind it. The
// download handler maps it to 404; everything else is a storage error.
var errBlobNotFound = errors.New("blob not found")

// ObjectInfo is the subset of blob metadata the handlers need.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// BlobStore is the object storage capability the service depends on.
// Get with start=0, end=-1 reads the whole object; otherwise start and
// end are inclusive byte offsets already validated against Stat's size.
type BlobStore interface {
	Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) (int64, error)
	Stat(ctx context.Context, path string) (ObjectInfo, error)
	Get(ctx context.Context, path string, start, end int64) (io.ReadCloser, error)
	RemoveAll(ctx context.Context, paths []string) error
	Ping(ctx context.Context) error
}
