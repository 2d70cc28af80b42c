package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Static errors for storage operations.
var (
	// ErrS3NotConfigured is returned when S3 operations are attempted
	// without proper configuration.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")
	// ErrInvalidScopeID is returned when a scope ID is not a single path element.
	ErrInvalidScopeID = errors.New("invalid scope ID")
	// ErrScopeExists is returned when a scope directory is already present.
	ErrScopeExists = errors.New("scope already exists")
)

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)

// LocalStorage implements the Storage interface using local disk.
// Each scope is a subdirectory of tempDir named after the scope ID.
type LocalStorage struct {
	tempDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// The tempDir parameter specifies where scopes are created.
// If tempDir is empty, a "framecast" directory under os.TempDir() is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(tempDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "framecast")
	}

	if err := os.MkdirAll(tempDir, 0750); err != nil {
		return nil, fmt.Errorf("create temp directory: %w", err)
	}

	return &LocalStorage{tempDir: tempDir}, nil
}

// TempDir returns the temporary directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// CreateScope creates <tempDir>/<id>. The base directory is recreated when
// it was removed since startup; the scope directory itself must not exist.
func (s *LocalStorage) CreateScope(ctx context.Context, id string) (Scope, error) {
	select {
	case <-ctx.Done():
		return Scope{}, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if id == "" || id == "." || id == ".." || filepath.Base(id) != id {
		return Scope{}, fmt.Errorf("%w: %q", ErrInvalidScopeID, id)
	}

	if err := os.MkdirAll(s.tempDir, 0750); err != nil {
		return Scope{}, fmt.Errorf("create temp directory: %w", err)
	}

	dir := filepath.Join(s.tempDir, id)
	if err := os.Mkdir(dir, 0750); err != nil {
		if os.IsExist(err) {
			return Scope{}, fmt.Errorf("%w: %s", ErrScopeExists, dir)
		}
		return Scope{}, fmt.Errorf("create scope directory: %w", err)
	}

	return Scope{ID: id, Dir: dir}, nil
}

// LoadTemp reads a temporary file and returns a reader.
// The caller is responsible for closing the returned ReadCloser.
func (s *LocalStorage) LoadTemp(ctx context.Context, path string) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	f, err := os.Open(path) // #nosec G304 - path is produced by the extractor inside a scope
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}

	return f, nil
}

// CleanupTemp removes the specified temporary files.
// It continues cleanup even if some files fail to delete,
// returning the first error encountered.
func (s *LocalStorage) CleanupTemp(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove temp file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// ReleaseScope removes paths, then the scope directory and whatever partial
// output is still inside it. Both steps always run.
func (s *LocalStorage) ReleaseScope(ctx context.Context, scope Scope, paths []string) error {
	fileErr := s.CleanupTemp(ctx, paths)

	var dirErr error
	if scope.Dir != "" {
		if err := os.RemoveAll(scope.Dir); err != nil {
			dirErr = fmt.Errorf("remove scope %s: %w", scope.Dir, err)
		}
	}

	return errors.Join(fileErr, dirErr)
}

// FetchObject is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) FetchObject(_ context.Context, _, _, _ string) error {
	return ErrS3NotConfigured
}
