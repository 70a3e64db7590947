package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Store defines the interface for durable blob storage backends.
// Names are the system-generated stored filenames; a blob is either
// fully present under its name or absent, never partially visible.
type Store interface {
	EnsureReady(ctx context.Context) error
	Save(ctx context.Context, name string, data io.Reader, size int64) (int64, error)
	Exists(ctx context.Context, name string) (bool, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}

// FileSystemStore stores blobs on the local filesystem.
type FileSystemStore struct {
	basePath string
}

// NewFileSystemStore creates a new filesystem storage backend.
func NewFileSystemStore(basePath string) *FileSystemStore {
	return &FileSystemStore{basePath: basePath}
}

// EnsureReady creates the storage directory if it doesn't exist.
func (fs *FileSystemStore) EnsureReady(_ context.Context) error {
	if err := os.MkdirAll(fs.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", fs.basePath, err)
	}
	return nil
}

// Save writes data to a temporary file in the storage directory and
// renames it into place. The rename is atomic on POSIX filesystems, so
// an interrupted write never leaves partial bytes visible under name.
// Returns the number of bytes written.
func (fs *FileSystemStore) Save(_ context.Context, name string, data io.Reader, _ int64) (int64, error) {
	finalPath := fs.blobPath(name)

	tmp, err := os.CreateTemp(fs.basePath, ".partial-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, data)
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to sync blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to close blob: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to publish blob %s: %w", name, err)
	}

	return n, nil
}

// Exists reports whether a blob is present under name.
func (fs *FileSystemStore) Exists(_ context.Context, name string) (bool, error) {
	if _, err := os.Stat(fs.blobPath(name)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat blob: %w", err)
	}
	return true, nil
}

// Open returns a reader over the stored blob.
func (fs *FileSystemStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(fs.blobPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob not found: %s", name)
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

// Delete removes the stored blob. Missing blobs are not an error.
func (fs *FileSystemStore) Delete(_ context.Context, name string) error {
	if err := os.Remove(fs.blobPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %s: %w", name, err)
	}
	return nil
}

func (fs *FileSystemStore) blobPath(name string) string {
	// Stored names are generated by the service and contain no path
	// separators; Base guards against a misbehaving caller anyway.
	return filepath.Join(fs.basePath, filepath.Base(name))
}
