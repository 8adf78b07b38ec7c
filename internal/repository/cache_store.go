// Package repository declares the persistence collaborator interfaces the
// pipeline depends on. Implementations live under internal/infra.
package repository

import (
	"context"
	"time"
)

// CacheStore is the durable fallback cache behind the in-memory feed cache.
//
// The store is an opaque key/value collaborator: the pipeline serializes
// entries itself and treats every store failure as a miss or no-op. Keys are
// "feed:" + feedName + "::" + lang (legacy installs used language-unscoped
// "feed:" + feedName keys, which readers may fall back to).
type CacheStore interface {
	// Get returns the value stored under key, or (nil, nil) on a miss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
