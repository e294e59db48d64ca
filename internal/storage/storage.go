// Package storage defines the blob store abstraction crawl reports are
// written to. Implementations live in the local, gcs and memory subpackages.
package storage

import (
	"context"
	"io"
)

// BlobStore persists opaque objects and returns a URI for each one.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}
