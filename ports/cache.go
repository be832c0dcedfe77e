package ports

import (
	"context"
	"time"
)

// Cache is a key/value store with per-key TTL and pattern-based bulk
// operations. A missing key is reported as an empty value with a nil error;
// absence is a valid "no entry" signal, not a failure. Transport errors
// propagate unmodified; retry policy belongs to the implementation's client,
// never to callers.
type Cache interface {
	// Get retrieves a value by key. Returns ("", nil) when the key is absent.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value under key. A zero ttl stores without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// GetMany returns the values of every key matching the glob pattern.
	GetMany(ctx context.Context, pattern string) ([]string, error)

	// DeleteMany removes every key matching the glob pattern.
	DeleteMany(ctx context.Context, pattern string) error
}
