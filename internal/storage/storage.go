// Package storage provides object storage for generated documents.
package storage

import (
	"context"
	"time"
)

// ObjectStore stores and serves generated documents by object key.
type ObjectStore interface {
	// Upload stores the given bytes under key with the given content type.
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	// PresignedURL returns a time-limited download URL for key.
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	// Delete removes the object stored under key. Deleting a missing
	// object is not an error.
	Delete(ctx context.Context, key string) error
	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)
}
