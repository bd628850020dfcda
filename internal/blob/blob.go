// Package blob stores the service's state snapshots as named documents on a
// pluggable backend: local filesystem (default), S3-compatible object
// storage, or memory for tests.
package blob

import (
	"context"
	"errors"
	"time"
)

// Driver identifies a concrete snapshot storage backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"     // local filesystem (default)
	DriverS3         Driver = "s3"     // S3 / MinIO compatible
	DriverMemory     Driver = "memory" // in-memory (tests)
)

// Info describes a stored document.
type Info struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size_bytes"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// Store is the snapshot storage abstraction. Put overwrites: snapshots are
// periodically rewritten documents, not immutable uploads.
type Store interface {
	Put(ctx context.Context, key string, data []byte) (Info, error)
	Get(ctx context.Context, key string) ([]byte, Info, error)
	// Delete removes a document. Returns (false, nil) if not found.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns documents whose key has the prefix, ordered by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

// ErrNotFound is returned by Get when no document exists at the key.
var ErrNotFound = errors.New("blob: not found")
