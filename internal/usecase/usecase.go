package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vadimbarashkov/linkcache/internal/entity"
	"github.com/vadimbarashkov/linkcache/internal/worker"
)

var ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating short code")

const (
	DefaultQueryTimeout = 2 * time.Second

	DefaultListLimit = 20
	MaxListLimit     = 100

	maxRetries = 5
)

type urlRepository interface {
	Save(ctx context.Context, shortCode, originalURL string) (*entity.URL, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	RetrieveByOriginalURL(ctx context.Context, originalURL string) (*entity.URL, error)
	RetrieveAndIncrementClicks(ctx context.Context, shortCode string) (*entity.URL, error)
	IncrementClicks(ctx context.Context, shortCode string, delta int64) error
	ListRecent(ctx context.Context, limit int) ([]*entity.URL, error)
}

type urlCache interface {
	Get(ctx context.Context, shortCode string) (string, error)
	Set(ctx context.Context, shortCode, originalURL string) error
	IncrPending(ctx context.Context, shortCode string) (int64, error)
}

type taskSubmitter interface {
	Submit(task worker.Task)
}

type codeGenerator interface {
	Generate() (string, error)
}

type Option func(*URLUseCase)

// WithQueryTimeout bounds durable store calls made on the redirect path.
func WithQueryTimeout(d time.Duration) Option {
	return func(uc *URLUseCase) {
		if d > 0 {
			uc.queryTimeout = d
		}
	}
}

type URLUseCase struct {
	urlRepo      urlRepository
	cache        urlCache
	tasks        taskSubmitter
	gen          codeGenerator
	logger       *slog.Logger
	queryTimeout time.Duration
}

func NewURLUseCase(
	urlRepo urlRepository,
	cache urlCache,
	tasks taskSubmitter,
	gen codeGenerator,
	logger *slog.Logger,
	opts ...Option,
) *URLUseCase {
	uc := &URLUseCase{
		urlRepo:      urlRepo,
		cache:        cache,
		tasks:        tasks,
		gen:          gen,
		logger:       logger,
		queryTimeout: DefaultQueryTimeout,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// ShortenURL returns the record for originalURL, creating it when none exists.
// created reports whether this call inserted the record.
func (uc *URLUseCase) ShortenURL(ctx context.Context, originalURL string) (url *entity.URL, created bool, err error) {
	const op = "usecase.URLUseCase.ShortenURL"

	if strings.TrimSpace(originalURL) == "" {
		return nil, false, fmt.Errorf("%s: %w", op, entity.ErrEmptyURL)
	}

	url, err = uc.urlRepo.RetrieveByOriginalURL(ctx, originalURL)
	if err == nil {
		uc.warm(ctx, url)
		return url, false, nil
	}
	if !errors.Is(err, entity.ErrURLNotFound) {
		return nil, false, fmt.Errorf("%s: failed to look up url: %w", op, err)
	}

	for i := 0; i < maxRetries; i++ {
		shortCode, err := uc.gen.Generate()
		if err != nil {
			return nil, false, fmt.Errorf("%s: failed to generate short code: %w", op, err)
		}

		url, err = uc.urlRepo.Save(ctx, shortCode, originalURL)
		if err != nil {
			if errors.Is(err, entity.ErrShortCodeExists) {
				continue
			}

			if errors.Is(err, entity.ErrOriginalURLExists) {
				url, err = uc.urlRepo.RetrieveByOriginalURL(ctx, originalURL)
				if err != nil {
					return nil, false, fmt.Errorf("%s: failed to read concurrently created url: %w", op, err)
				}

				uc.warm(ctx, url)
				return url, false, nil
			}

			return nil, false, fmt.Errorf("%s: failed to shorten url: %w", op, err)
		}

		uc.warm(ctx, url)
		return url, true, nil
	}

	return nil, false, fmt.Errorf("%s: %w", op, ErrMaxRetriesExceeded)
}

// ResolveShortCode returns the original URL for shortCode and records a click.
// A cache hit defers the click to the worker pool; a miss counts it in the
// durable store and refills the cache.
func (uc *URLUseCase) ResolveShortCode(ctx context.Context, shortCode string) (string, error) {
	const op = "usecase.URLUseCase.ResolveShortCode"

	originalURL, err := uc.cache.Get(ctx, shortCode)
	if err == nil {
		uc.tasks.Submit(uc.countClick(shortCode))
		return originalURL, nil
	}
	if !errors.Is(err, entity.ErrCacheMiss) {
		uc.logger.Warn("cache degraded, resolving from durable store",
			slog.String("short_code", shortCode),
			slog.Any("err", err))
	}

	qctx, cancel := context.WithTimeout(ctx, uc.queryTimeout)
	defer cancel()

	url, err := uc.urlRepo.RetrieveAndIncrementClicks(qctx, shortCode)
	if err != nil {
		return "", fmt.Errorf("%s: failed to resolve short code: %w", op, err)
	}

	uc.warm(ctx, url)

	return url.OriginalURL, nil
}

// countClick records one click for shortCode in the pending counter, falling
// back to the durable store when the cache refuses it.
func (uc *URLUseCase) countClick(shortCode string) worker.Task {
	return func(ctx context.Context) {
		_, err := uc.cache.IncrPending(ctx, shortCode)
		if err == nil {
			return
		}
		if !errors.Is(err, entity.ErrCacheUnavailable) {
			uc.logger.Warn("failed to record pending click, writing through",
				slog.String("short_code", shortCode),
				slog.Any("err", err))
		}

		if err := uc.urlRepo.IncrementClicks(ctx, shortCode, 1); err != nil {
			uc.logger.Error("click lost",
				slog.String("short_code", shortCode),
				slog.Any("err", err))
		}
	}
}

func (uc *URLUseCase) warm(ctx context.Context, url *entity.URL) {
	if err := uc.cache.Set(ctx, url.ShortCode, url.OriginalURL); err != nil {
		uc.logger.Warn("failed to cache url",
			slog.String("short_code", url.ShortCode),
			slog.Any("err", err))
	}
}

// ListRecentURLs returns the most recently created records first. limit is
// clamped to [1, MaxListLimit]; zero or less selects DefaultListLimit.
func (uc *URLUseCase) ListRecentURLs(ctx context.Context, limit int) ([]*entity.URL, error) {
	const op = "usecase.URLUseCase.ListRecentURLs"

	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}

	urls, err := uc.urlRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	return urls, nil
}

// GetURLStats returns the durable record for shortCode. Clicks still pending
// in the cache are not included.
func (uc *URLUseCase) GetURLStats(ctx context.Context, shortCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.GetURLStats"

	url, err := uc.urlRepo.RetrieveByShortCode(ctx, shortCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to get url stats: %w", op, err)
	}

	return url, nil
}
