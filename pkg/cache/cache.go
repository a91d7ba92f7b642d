// Package cache provides byte caches for build artifacts.
//
// The builder downloads the same composer release for every build. A
// [Cache] lets those downloads be reused across builds on one machine
// ([FileCache]) or across a fleet of build workers ([RedisCache]).
// [NullCache] disables caching.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values by key.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of 0 means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases resources held by the cache.
	Close() error
}
