package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *FilesystemStore {
	t.Helper()
	store, err := NewFilesystemStore(filepath.Join(t.TempDir(), "media"), "media/")
	if err != nil {
		t.Fatalf("NewFilesystemStore error: %v", err)
	}
	return store
}

func TestFilesystemStore_PutDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	obj, err := store.Put(ctx, "photo.jpg", "image/jpeg", []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if obj.Key != "photo.jpg" {
		t.Errorf("expected key photo.jpg, got %q", obj.Key)
	}
	if obj.URL != "/media/photo.jpg" {
		t.Errorf("expected URL /media/photo.jpg, got %q", obj.URL)
	}

	data, err := os.ReadFile(filepath.Join(store.Directory(), "photo.jpg"))
	if err != nil {
		t.Fatalf("failed to read stored blob: %v", err)
	}
	if !bytes.Equal(data, []byte("jpeg-bytes")) {
		t.Errorf("unexpected blob content %q", data)
	}

	if err := store.Delete(ctx, "photo.jpg"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(store.Directory(), "photo.jpg")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected blob file to be removed, got %v", err)
	}
	if err := store.Delete(ctx, "photo.jpg"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound on second delete, got %v", err)
	}
}

func TestFilesystemStore_NoTemporaryFilesLeft(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Put(context.Background(), "a.png", "image/png", []byte("png")); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	entries, err := os.ReadDir(store.Directory())
	if err != nil {
		t.Fatalf("ReadDir error: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "a.png" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected only a.png in storage directory, got %v", names)
	}
}

func TestFilesystemStore_RejectsUnsafeKeys(t *testing.T) {
	store := newTestStore(t)
	for _, key := range []string{"", "../escape.jpg", "nested/file.jpg", ".hidden"} {
		if _, err := store.Put(context.Background(), key, "image/jpeg", []byte("x")); err == nil {
			t.Errorf("expected error for key %q", key)
		}
	}
}

func TestNewBlobStore(t *testing.T) {
	store, err := NewBlobStore(context.Background(), Config{Type: "filesystem", Directory: t.TempDir()})
	if err != nil {
		t.Fatalf("NewBlobStore error: %v", err)
	}
	fsStore, ok := store.(*FilesystemStore)
	if !ok {
		t.Fatalf("expected *FilesystemStore, got %T", store)
	}
	if fsStore.PublicPath() != "/media" {
		t.Errorf("expected default public path /media, got %q", fsStore.PublicPath())
	}

	if _, err := NewBlobStore(context.Background(), Config{Type: "s3"}); err == nil {
		t.Fatalf("expected error for unsupported storage type")
	}
}
