package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FilesystemStore keeps blobs in a local directory. The HTTP server serves the
// directory under PublicPath.
type FilesystemStore struct {
	directory  string
	publicPath string
}

func NewFilesystemStore(directory, publicPath string) (*FilesystemStore, error) {
	if directory == "" {
		return nil, fmt.Errorf("filesystem storage requires a directory")
	}
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", directory, err)
	}
	if publicPath == "" {
		publicPath = "/media"
	}
	return &FilesystemStore{
		directory:  directory,
		publicPath: "/" + strings.Trim(publicPath, "/"),
	}, nil
}

func (s *FilesystemStore) Directory() string {
	return s.directory
}

func (s *FilesystemStore) PublicPath() string {
	return s.publicPath
}

func (s *FilesystemStore) Put(_ context.Context, key string, _ string, data []byte) (*Object, error) {
	target, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	// Write to a temporary file first so readers never observe a partial blob
	tmp, err := os.CreateTemp(s.directory, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return nil, fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return nil, fmt.Errorf("failed to close blob %s: %w", key, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return nil, fmt.Errorf("failed to move blob %s into place: %w", key, err)
	}

	slog.Debug("stored blob on filesystem", "key", key, "size_bytes", len(data))
	return &Object{Key: key, URL: path.Join(s.publicPath, key)}, nil
}

func (s *FilesystemStore) Delete(_ context.Context, key string) error {
	target, err := s.resolve(key)
	if err != nil {
		return err
	}
	err = os.Remove(target)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrObjectNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	return nil
}

func (s *FilesystemStore) Close() error {
	return nil
}

// resolve maps a key to a path inside the storage directory. Keys are flat
// file names; anything that could escape the directory is rejected.
func (s *FilesystemStore) resolve(key string) (string, error) {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.directory, key), nil
}
