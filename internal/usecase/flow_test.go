package usecase_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/linkcache/internal/adapter/cache"
	"github.com/vadimbarashkov/linkcache/internal/adapter/cache/redis"
	"github.com/vadimbarashkov/linkcache/internal/adapter/repository/sqlite"
	"github.com/vadimbarashkov/linkcache/internal/entity"
	"github.com/vadimbarashkov/linkcache/internal/reconciler"
	"github.com/vadimbarashkov/linkcache/internal/shortcode"
	"github.com/vadimbarashkov/linkcache/internal/usecase"
	"github.com/vadimbarashkov/linkcache/internal/worker"

	sqlitedb "github.com/vadimbarashkov/linkcache/pkg/sqlite"
)

type stack struct {
	mr    *miniredis.Miniredis
	repo  *sqlite.URLRepository
	cache *cache.Breaker
	pool  *worker.Pool
	rec   *reconciler.Reconciler
	uc    *usecase.URLUseCase
}

func newStack(t *testing.T) *stack {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlitedb.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	require.NoError(t, sqlitedb.RunMigrations(db))

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() {
		client.Close()
	})

	gen, err := shortcode.NewGenerator(shortcode.DefaultLength)
	require.NoError(t, err)

	s := &stack{
		mr:   mr,
		repo: sqlite.NewURLRepository(db),
		pool: worker.NewPool(2, 16, time.Second, logger),
	}
	s.cache = cache.NewBreaker(redis.New(client, redis.WithTimeout(time.Second)), 3, time.Hour, logger)
	t.Cleanup(s.cache.Close)

	s.pool.Start()
	t.Cleanup(s.pool.Stop)

	s.rec = reconciler.New(s.cache, s.repo, time.Minute, logger)
	s.uc = usecase.NewURLUseCase(s.repo, s.cache, s.pool, gen, logger)

	return s
}

// flush waits for queued click tasks by stopping the pool; later submissions
// run inline.
func (s *stack) flush() {
	s.pool.Stop()
}

func TestFlow_ClicksReachDurableStore(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	url, created, err := s.uc.ShortenURL(ctx, "https://example.com/a")
	require.NoError(t, err)
	require.True(t, created)
	assert.Len(t, url.ShortCode, shortcode.DefaultLength)
	assert.Zero(t, url.Clicks)

	for i := 0; i < 3; i++ {
		originalURL, err := s.uc.ResolveShortCode(ctx, url.ShortCode)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/a", originalURL)
	}
	s.flush()

	report, err := s.rec.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), report.Clicks)

	stats, err := s.uc.GetURLStats(ctx, url.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Clicks)
	assert.False(t, s.mr.Exists("clicks:"+url.ShortCode))
}

func TestFlow_IdempotentCreate(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	first, created, err := s.uc.ShortenURL(ctx, "https://example.com/a")
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := s.uc.ShortenURL(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ShortCode, second.ShortCode)
	assert.Zero(t, second.Clicks)
}

func TestFlow_ConcurrentCreate(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	codes := make([]string, 10)

	for i := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			url, _, err := s.uc.ShortenURL(ctx, "https://example.com/race")
			if assert.NoError(t, err) {
				codes[i] = url.ShortCode
			}
		}()
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, codes[0], code)
	}
}

func TestFlow_UnknownCode(t *testing.T) {
	s := newStack(t)

	_, err := s.uc.ResolveShortCode(context.Background(), "zzzzzzzzzz")

	assert.ErrorIs(t, err, entity.ErrURLNotFound)
	assert.False(t, s.mr.Exists("zzzzzzzzzz"))
}

func TestFlow_CacheSelfHeals(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	url, _, err := s.uc.ShortenURL(ctx, "https://example.com/a")
	require.NoError(t, err)

	s.mr.FlushAll()

	// miss: counted in the durable store and cached again
	_, err = s.uc.ResolveShortCode(ctx, url.ShortCode)
	require.NoError(t, err)

	stored, err := s.repo.RetrieveByShortCode(ctx, url.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Clicks)

	cached, err := s.mr.Get(url.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", cached)

	// hit: counted as pending
	_, err = s.uc.ResolveShortCode(ctx, url.ShortCode)
	require.NoError(t, err)
	s.flush()

	pending, err := s.mr.Get("clicks:" + url.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, "1", pending)
}

func TestFlow_CacheDown(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	url, _, err := s.uc.ShortenURL(ctx, "https://example.com/a")
	require.NoError(t, err)

	s.mr.Close()

	for i := 0; i < 5; i++ {
		originalURL, err := s.uc.ResolveShortCode(ctx, url.ShortCode)
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/a", originalURL)
	}
	assert.True(t, s.cache.Open())

	other, created, err := s.uc.ShortenURL(ctx, "https://example.com/b")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, url.ShortCode, other.ShortCode)

	stored, err := s.repo.RetrieveByShortCode(ctx, url.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stored.Clicks)
}
