package storage

import (
	"bytes"
	"context"
	"io"
)

// ObjectStorage defines the interface for evidence object storage. From the
// worker's point of view this is a stateless capability; upload failure is the
// caller's problem to classify.
type ObjectStorage interface {
	// Upload uploads an object to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// GetURL returns the public URL for accessing an object
	GetURL(key string) string

	// Delete deletes an object from storage
	Delete(ctx context.Context, key string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, key string) (bool, error)
}

// UploadBuffer uploads a byte buffer under the given key and returns its
// public URL. This is the uploadBuffer capability the scrapers depend on.
func UploadBuffer(ctx context.Context, store ObjectStorage, key string, data []byte, contentType string) (string, error) {
	if err := store.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", err
	}
	return store.GetURL(key), nil
}
