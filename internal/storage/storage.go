// Package storage stores project archives in an object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/softdesk/apiserver/config"
)

// ErrObjectNotFound is returned by Get for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore defines the object operations shared by every backend.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Open builds the backend selected in cfg and makes sure its bucket exists.
// With no backend configured it returns nil and no error.
func Open(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	var (
		store ObjectStore
		err   error
	)
	switch cfg.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendMinio:
		store, err = NewMinioClient(cfg.Minio)
	case config.BackendGCS:
		store, err = NewGCSClient(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", store.Bucket(), err)
	}
	return store, nil
}
