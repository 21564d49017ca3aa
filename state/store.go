// Package state provides the key/value store backing stateful tools:
// an in-memory store for tests and single-process runs, and a SQLite store
// for persistence across restarts.
package state

import (
	"context"
	"time"
)

// Store is a TTL-aware key/value store. Values are opaque bytes; callers
// that need structure encode JSON.
type Store interface {
	// Get returns the value for key, or (nil, false, nil) when absent or
	// expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)
}
