package blobstore

import (
	"context"
	"errors"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// ErrInvalidName is returned for blob names that are empty or escape the
// store root.
var ErrInvalidName = errors.New("blobstore: invalid blob name")

// Store is an object store holding whole blobs addressed by slash-separated
// names. Implementations must be safe for concurrent use.
type Store interface {
	// Put writes a blob, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
	// Get returns the full content of a blob.
	Get(ctx context.Context, name string) ([]byte, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns all blob names with the given prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}
