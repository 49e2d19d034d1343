package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrObjectNotFound is returned when deleting a key that was never stored.
var ErrObjectNotFound = errors.New("object not found")

// Object describes a stored blob.
type Object struct {
	Key string
	URL string // publicly reachable URL of the blob
}

// BlobStore persists image bytes and hands out URLs under which they are served.
type BlobStore interface {
	Put(ctx context.Context, key string, contentType string, data []byte) (*Object, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Type            string `yaml:"type" validate:"oneof=filesystem gcs"`
	Directory       string `yaml:"directory"`
	PublicPath      string `yaml:"publicPath"`
	Bucket          string `yaml:"bucket"`
	PublicBaseURL   string `yaml:"publicBaseUrl"`
	CredentialsFile string `yaml:"credentialsFile"`
}

func NewBlobStore(ctx context.Context, config Config) (BlobStore, error) {
	switch config.Type {
	case "filesystem":
		return NewFilesystemStore(config.Directory, config.PublicPath)
	case "gcs":
		return NewGCSStore(ctx, config.Bucket, config.PublicBaseURL, config.CredentialsFile)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}
