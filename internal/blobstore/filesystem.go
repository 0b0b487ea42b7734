package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/DoctaneDMS/dms-service-sql/internal/dms"
	"github.com/DoctaneDMS/dms-service-sql/internal/id"
)

// FileSystemStore keeps each blob in its own file. The key text is split on
// '-' into nested directories:
//
//	<root>/
//	  0b1f6c9e/2f4a/4d55/9c37/3c6f00000001
type FileSystemStore struct {
	idKeys
	root string
}

// NewFileSystemStore creates a store rooted at root, creating the directory
// if needed.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob root: %w", err)
	}
	return &FileSystemStore{root: root}, nil
}

// Root returns the directory the store writes under.
func (s *FileSystemStore) Root() string { return s.root }

func (s *FileSystemStore) path(key id.ID) string {
	parts := append([]string{s.root}, strings.Split(key.String(), "-")...)
	return filepath.Join(parts...)
}

func (s *FileSystemStore) Get(_ context.Context, key id.ID) (io.ReadCloser, error) {
	f, err := os.Open(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, notFound(key)
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

// Put writes to a temp file next to the destination and renames it into
// place, so readers never see a partial blob.
func (s *FileSystemStore) Put(_ context.Context, key id.ID, r io.Reader) error {
	destPath := s.path(key)
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Link hard-links the file of from to the path of to.
func (s *FileSystemStore) Link(_ context.Context, from, to id.ID) error {
	src, dst := s.path(from), s.path(to)
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return notFound(from)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := os.Link(src, dst); err != nil {
		return fmt.Errorf("failed to link blob: %w", err)
	}
	return nil
}

func (s *FileSystemStore) Remove(_ context.Context, key id.ID) error {
	if err := os.Remove(s.path(key)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return notFound(key)
		}
		return fmt.Errorf("failed to remove blob: %w", err)
	}
	return nil
}

// Compile-time check that FileSystemStore implements dms.BlobStore
var _ dms.BlobStore = (*FileSystemStore)(nil)
