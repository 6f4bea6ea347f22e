// Package redis implements the Fast Cache on top of Redis.
//
// Keys follow the wire contract shared with other instances of the service:
// the short code itself maps to the original URL (with a TTL), and
// "clicks:<short code>" holds the pending click counter (no TTL).
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vadimbarashkov/linkcache/internal/adapter/cache"
	"github.com/vadimbarashkov/linkcache/internal/entity"
)

const (
	DefaultTTL       = time.Hour
	DefaultTimeout   = 100 * time.Millisecond
	DefaultScanCount = 500
)

// settleScript subtracts the applied clicks and drops the counter once it
// reaches zero, so increments recorded while a reconciliation was running stay.
var settleScript = redis.NewScript(`
local left = redis.call('DECRBY', KEYS[1], ARGV[1])
if left <= 0 then
	redis.call('DEL', KEYS[1])
end
return left
`)

type Option func(*Cache)

// WithTTL sets the expiry of short code entries.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithTimeout bounds every single-key operation.
func WithTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithScanCount sets the COUNT hint used while scanning pending counters.
func WithScanCount(n int64) Option {
	return func(c *Cache) {
		if n > 0 {
			c.scanCount = n
		}
	}
}

type Cache struct {
	client    redis.UniversalClient
	ttl       time.Duration
	timeout   time.Duration
	scanCount int64
}

var _ cache.Cache = (*Cache)(nil)

func New(client redis.UniversalClient, opts ...Option) *Cache {
	c := &Cache{
		client:    client,
		ttl:       DefaultTTL,
		timeout:   DefaultTimeout,
		scanCount: DefaultScanCount,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewClient parses a redis:// or rediss:// URI into a client.
func NewClient(uri string) (*redis.Client, error) {
	const op = "adapter.cache.redis.NewClient"

	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse cache uri: %w", op, err)
	}

	return redis.NewClient(opts), nil
}

func pendingKey(shortCode string) string {
	return cache.PendingKeyPrefix + shortCode
}

func (c *Cache) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Cache) Get(ctx context.Context, shortCode string) (string, error) {
	const op = "adapter.cache.redis.Cache.Get"

	ctx, cancel := c.bound(ctx)
	defer cancel()

	originalURL, err := c.client.Get(ctx, shortCode).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", entity.ErrCacheMiss
		}

		return "", fmt.Errorf("%s: failed to get url: %w", op, err)
	}

	return originalURL, nil
}

func (c *Cache) Set(ctx context.Context, shortCode, originalURL string) error {
	const op = "adapter.cache.redis.Cache.Set"

	ctx, cancel := c.bound(ctx)
	defer cancel()

	if err := c.client.Set(ctx, shortCode, originalURL, c.ttl).Err(); err != nil {
		return fmt.Errorf("%s: failed to set url: %w", op, err)
	}

	return nil
}

func (c *Cache) IncrPending(ctx context.Context, shortCode string) (int64, error) {
	const op = "adapter.cache.redis.Cache.IncrPending"

	ctx, cancel := c.bound(ctx)
	defer cancel()

	n, err := c.client.Incr(ctx, pendingKey(shortCode)).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to increment pending clicks: %w", op, err)
	}

	return n, nil
}

// ScanPending walks the pending namespace with SCAN and reads the counters in
// pipelined batches. Counters that vanish between the scan and the read, or
// that hold a non-integer or non-string value, are skipped.
func (c *Cache) ScanPending(ctx context.Context) ([]entity.PendingClicks, error) {
	const op = "adapter.cache.redis.Cache.ScanPending"

	var keys []string

	iter := c.client.Scan(ctx, 0, cache.PendingKeyPrefix+"*", c.scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to scan pending clicks: %w", op, err)
	}

	pending := make([]entity.PendingClicks, 0, len(keys))

	for start := 0; start < len(keys); start += int(c.scanCount) {
		end := min(start+int(c.scanCount), len(keys))
		batch := keys[start:end]

		pipe := c.client.Pipeline()
		cmds := make([]*redis.StringCmd, len(batch))
		for i, key := range batch {
			cmds[i] = pipe.Get(ctx, key)
		}

		// Exec reports only the first failed command; each reply is checked below.
		_, _ = pipe.Exec(ctx)

		for i, cmd := range cmds {
			raw, err := cmd.Result()
			if err != nil {
				// Server replies such as nil or WRONGTYPE concern a single key.
				var replyErr redis.Error
				if errors.As(err, &replyErr) {
					continue
				}
				return nil, fmt.Errorf("%s: failed to read pending clicks: %w", op, err)
			}

			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				continue
			}

			pending = append(pending, entity.PendingClicks{
				ShortCode: strings.TrimPrefix(batch[i], cache.PendingKeyPrefix),
				Count:     n,
			})
		}
	}

	return pending, nil
}

func (c *Cache) SettlePending(ctx context.Context, shortCode string, n int64) error {
	const op = "adapter.cache.redis.Cache.SettlePending"

	ctx, cancel := c.bound(ctx)
	defer cancel()

	if err := settleScript.Run(ctx, c.client, []string{pendingKey(shortCode)}, n).Err(); err != nil {
		return fmt.Errorf("%s: failed to settle pending clicks: %w", op, err)
	}

	return nil
}

func (c *Cache) Ping(ctx context.Context) error {
	const op = "adapter.cache.redis.Cache.Ping"

	ctx, cancel := c.bound(ctx)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
