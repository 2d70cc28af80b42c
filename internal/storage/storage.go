// Package storage provides request-scoped temporary file storage.
// It defines the Storage interface (port) for hexagonal architecture and
// implementations for local disk and for local disk backed by S3 sources.
package storage

import (
	"context"
	"io"
	"path/filepath"
)

// Scope is a request-exclusive directory holding the artifacts of one
// analysis run. Scopes are never shared between runs.
type Scope struct {
	// ID is the identifier the scope was created for (the run ID).
	ID string
	// Dir is the absolute path of the scope directory.
	Dir string
}

// Path returns the path of name inside the scope.
func (s Scope) Path(name string) string {
	return filepath.Join(s.Dir, filepath.Base(name))
}

// Storage defines the interface for request-scoped temporary storage.
type Storage interface {
	// CreateScope creates a fresh directory for the given ID.
	// It fails if a scope with the same ID already exists.
	CreateScope(ctx context.Context, id string) (Scope, error)

	// LoadTemp reads a temporary file and returns a reader.
	// The caller is responsible for closing the returned ReadCloser.
	LoadTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// CleanupTemp removes the specified temporary files.
	// It continues cleanup even if some files fail to delete.
	CleanupTemp(ctx context.Context, paths []string) error

	// ReleaseScope removes the given artifacts and then the scope directory
	// with anything left in it. Releasing an already released scope is a no-op.
	ReleaseScope(ctx context.Context, scope Scope, paths []string) error

	// FetchObject downloads an S3 object to dst.
	// Returns ErrS3NotConfigured if S3 is not configured.
	FetchObject(ctx context.Context, bucket, key, dst string) error
}
