// Package cache contains the Fast Cache contract shared by the cache adapters,
// a no-op implementation used when no cache is configured, and a circuit
// breaker that short-circuits calls to a failing cache.
package cache

import (
	"context"

	"github.com/vadimbarashkov/linkcache/internal/entity"
)

// PendingKeyPrefix prefixes the keys of the pending click counters.
const PendingKeyPrefix = "clicks:"

// Cache is the Fast Cache: short code to original URL entries with a TTL,
// and a separate namespace of pending click counters without expiry.
type Cache interface {
	// Get returns the original URL cached for shortCode, or entity.ErrCacheMiss.
	Get(ctx context.Context, shortCode string) (string, error)
	// Set caches originalURL under shortCode with the cache TTL.
	Set(ctx context.Context, shortCode, originalURL string) error
	// IncrPending adds one pending click for shortCode and returns the new count.
	IncrPending(ctx context.Context, shortCode string) (int64, error)
	// ScanPending returns every pending click counter.
	ScanPending(ctx context.Context) ([]entity.PendingClicks, error)
	// SettlePending subtracts n applied clicks from the counter of shortCode,
	// removing the counter when nothing is left.
	SettlePending(ctx context.Context, shortCode string, n int64) error
	// Ping reports whether the cache is reachable.
	Ping(ctx context.Context) error
}

// Nop is a Cache that stores nothing. Every lookup misses, so resolutions
// always take the durable path.
type Nop struct{}

var _ Cache = Nop{}

func (Nop) Get(context.Context, string) (string, error) {
	return "", entity.ErrCacheMiss
}

func (Nop) Set(context.Context, string, string) error {
	return nil
}

func (Nop) IncrPending(context.Context, string) (int64, error) {
	return 0, entity.ErrCacheUnavailable
}

func (Nop) ScanPending(context.Context) ([]entity.PendingClicks, error) {
	return nil, nil
}

func (Nop) SettlePending(context.Context, string, int64) error {
	return nil
}

func (Nop) Ping(context.Context) error {
	return nil
}
