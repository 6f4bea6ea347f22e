// Package memory implements the Fast Cache inside the process with go-cache.
// It suits single-instance deployments; pending clicks are lost if the
// process dies before a reconciliation run, the same way they would be if a
// non-persistent Redis restarted.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/vadimbarashkov/linkcache/internal/adapter/cache"
	"github.com/vadimbarashkov/linkcache/internal/entity"
)

const (
	DefaultTTL             = time.Hour
	DefaultCleanupInterval = 10 * time.Minute
)

type Cache struct {
	urls *gocache.Cache

	// mu serializes read-modify-write cycles on the pending counters.
	mu      sync.Mutex
	pending *gocache.Cache
}

var _ cache.Cache = (*Cache)(nil)

// New returns a cache whose URL entries expire after ttl.
func New(ttl, cleanupInterval time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	return &Cache{
		urls:    gocache.New(ttl, cleanupInterval),
		pending: gocache.New(gocache.NoExpiration, 0),
	}
}

func (c *Cache) Get(_ context.Context, shortCode string) (string, error) {
	v, found := c.urls.Get(shortCode)
	if !found {
		return "", entity.ErrCacheMiss
	}

	originalURL, ok := v.(string)
	if !ok {
		return "", entity.ErrCacheMiss
	}

	return originalURL, nil
}

func (c *Cache) Set(_ context.Context, shortCode, originalURL string) error {
	c.urls.Set(shortCode, originalURL, gocache.DefaultExpiration)
	return nil
}

func (c *Cache) IncrPending(_ context.Context, shortCode string) (int64, error) {
	key := cache.PendingKeyPrefix + shortCode

	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	if v, found := c.pending.Get(key); found {
		n = v.(int64)
	}
	n++

	c.pending.Set(key, n, gocache.NoExpiration)

	return n, nil
}

func (c *Cache) ScanPending(_ context.Context) ([]entity.PendingClicks, error) {
	c.mu.Lock()
	items := c.pending.Items()
	c.mu.Unlock()

	pending := make([]entity.PendingClicks, 0, len(items))
	for key, item := range items {
		n, ok := item.Object.(int64)
		if !ok {
			continue
		}

		pending = append(pending, entity.PendingClicks{
			ShortCode: strings.TrimPrefix(key, cache.PendingKeyPrefix),
			Count:     n,
		})
	}

	return pending, nil
}

func (c *Cache) SettlePending(_ context.Context, shortCode string, n int64) error {
	key := cache.PendingKeyPrefix + shortCode

	c.mu.Lock()
	defer c.mu.Unlock()

	var left int64
	if v, found := c.pending.Get(key); found {
		left = v.(int64)
	}
	left -= n

	if left <= 0 {
		c.pending.Delete(key)
		return nil
	}

	c.pending.Set(key, left, gocache.NoExpiration)

	return nil
}

func (c *Cache) Ping(context.Context) error {
	return nil
}
