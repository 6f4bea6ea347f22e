package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vadimbarashkov/linkcache/internal/entity"
)

const (
	DefaultFailureThreshold = 5
	DefaultProbeInterval    = 10 * time.Second

	probeTimeout = 3 * time.Second
)

// Breaker wraps a Cache and stops calling it after a run of consecutive
// operational failures. While open, every call fails fast with
// entity.ErrCacheUnavailable and a background probe pings the wrapped cache
// until it answers again.
type Breaker struct {
	next          Cache
	threshold     int32
	probeInterval time.Duration
	logger        *slog.Logger

	open     atomic.Bool
	failures atomic.Int32

	wg       sync.WaitGroup
	stop     chan struct{}
	stopOnce sync.Once
}

var _ Cache = (*Breaker)(nil)

// NewBreaker wraps next. Non-positive threshold or probeInterval fall back to the defaults.
func NewBreaker(next Cache, threshold int, probeInterval time.Duration, logger *slog.Logger) *Breaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if probeInterval <= 0 {
		probeInterval = DefaultProbeInterval
	}

	return &Breaker{
		next:          next,
		threshold:     int32(threshold),
		probeInterval: probeInterval,
		logger:        logger,
		stop:          make(chan struct{}),
	}
}

// Open reports whether calls are currently short-circuited.
func (b *Breaker) Open() bool {
	return b.open.Load()
}

func (b *Breaker) Get(ctx context.Context, shortCode string) (string, error) {
	if b.open.Load() {
		return "", entity.ErrCacheUnavailable
	}

	v, err := b.next.Get(ctx, shortCode)
	b.record(err)
	return v, err
}

func (b *Breaker) Set(ctx context.Context, shortCode, originalURL string) error {
	if b.open.Load() {
		return entity.ErrCacheUnavailable
	}

	err := b.next.Set(ctx, shortCode, originalURL)
	b.record(err)
	return err
}

func (b *Breaker) IncrPending(ctx context.Context, shortCode string) (int64, error) {
	if b.open.Load() {
		return 0, entity.ErrCacheUnavailable
	}

	n, err := b.next.IncrPending(ctx, shortCode)
	b.record(err)
	return n, err
}

func (b *Breaker) ScanPending(ctx context.Context) ([]entity.PendingClicks, error) {
	if b.open.Load() {
		return nil, entity.ErrCacheUnavailable
	}

	pending, err := b.next.ScanPending(ctx)
	b.record(err)
	return pending, err
}

func (b *Breaker) SettlePending(ctx context.Context, shortCode string, n int64) error {
	if b.open.Load() {
		return entity.ErrCacheUnavailable
	}

	err := b.next.SettlePending(ctx, shortCode, n)
	b.record(err)
	return err
}

// Ping always reaches the wrapped cache.
func (b *Breaker) Ping(ctx context.Context) error {
	return b.next.Ping(ctx)
}

// Close stops the background probe, if any.
func (b *Breaker) Close() {
	b.stopOnce.Do(func() {
		close(b.stop)
	})
	b.wg.Wait()
}

func (b *Breaker) record(err error) {
	if err == nil || errors.Is(err, entity.ErrCacheMiss) {
		b.failures.Store(0)
		return
	}

	// A cancelled caller says nothing about the cache.
	if errors.Is(err, context.Canceled) {
		return
	}

	if b.failures.Add(1) < b.threshold {
		return
	}

	if b.open.CompareAndSwap(false, true) {
		b.logger.Warn("cache breaker opened, serving from durable store only",
			slog.Int("failures", int(b.failures.Load())),
			slog.Any("err", err))

		b.wg.Add(1)
		go b.probe()
	}
}

func (b *Breaker) probe() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
			err := b.next.Ping(ctx)
			cancel()

			if err != nil {
				b.logger.Debug("cache still unavailable", slog.Any("err", err))
				continue
			}

			b.failures.Store(0)
			b.open.Store(false)
			b.logger.Info("cache recovered, breaker closed")
			return
		}
	}
}
