package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-chi/httplog/v2"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/linkcache/internal/adapter/cache"
	"github.com/vadimbarashkov/linkcache/internal/adapter/cache/memory"
	"github.com/vadimbarashkov/linkcache/internal/adapter/cache/redis"
	"github.com/vadimbarashkov/linkcache/internal/adapter/repository/postgres"
	"github.com/vadimbarashkov/linkcache/internal/adapter/repository/sqlite"
	"github.com/vadimbarashkov/linkcache/internal/config"
	"github.com/vadimbarashkov/linkcache/internal/entity"

	postgresdb "github.com/vadimbarashkov/linkcache/pkg/postgres"
	sqlitedb "github.com/vadimbarashkov/linkcache/pkg/sqlite"
)

const (
	schemePostgres   = "postgres://"
	schemePostgreSQL = "postgresql://"
	schemeSQLite     = "sqlite://"
	schemeRedis      = "redis://"
	schemeRedisTLS   = "rediss://"
	schemeMemory     = "memory://"
)

type urlRepository interface {
	Save(ctx context.Context, shortCode, originalURL string) (*entity.URL, error)
	RetrieveByShortCode(ctx context.Context, shortCode string) (*entity.URL, error)
	RetrieveByOriginalURL(ctx context.Context, originalURL string) (*entity.URL, error)
	RetrieveAndIncrementClicks(ctx context.Context, shortCode string) (*entity.URL, error)
	IncrementClicks(ctx context.Context, shortCode string, delta int64) error
	ListRecent(ctx context.Context, limit int) ([]*entity.URL, error)
	Ping(ctx context.Context) error
}

// NewLogger builds the service logger. Production environments log JSON.
func NewLogger(cfg *config.Config) (*httplog.Logger, error) {
	const op = "app.NewLogger"

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("%s: invalid log level: %w", op, err)
	}

	return httplog.NewLogger("linkcache", httplog.Options{
		JSON:           cfg.Env == config.EnvProd,
		LogLevel:       level,
		Concise:        cfg.Env != config.EnvProd,
		RequestHeaders: cfg.Env == config.EnvProd,
		Tags: map[string]string{
			"env": cfg.Env,
		},
	}), nil
}

// openDatabase connects to the durable store selected by the URI scheme and
// brings its schema up to date.
func openDatabase(ctx context.Context, cfg config.Database) (*sqlx.DB, urlRepository, error) {
	const op = "app.openDatabase"

	switch {
	case strings.HasPrefix(cfg.URI, schemePostgres), strings.HasPrefix(cfg.URI, schemePostgreSQL):
		db, err := postgresdb.New(
			ctx,
			cfg.URI,
			postgresdb.WithConnMaxIdleTime(cfg.ConnMaxIdleTime),
			postgresdb.WithConnMaxLifetime(cfg.ConnMaxLifetime),
			postgresdb.WithMaxIdleConns(cfg.MaxIdleConns),
			postgresdb.WithMaxOpenConns(cfg.MaxOpenConns),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}

		if err := postgresdb.RunMigrations(cfg.URI); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}

		return db, postgres.NewURLRepository(db), nil

	case strings.HasPrefix(cfg.URI, schemeSQLite):
		db, err := sqlitedb.New(ctx, strings.TrimPrefix(cfg.URI, schemeSQLite))
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}

		if err := sqlitedb.RunMigrations(db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}

		return db, sqlite.NewURLRepository(db), nil

	default:
		return nil, nil, fmt.Errorf("%s: unsupported database uri scheme: %q", op, cfg.URI)
	}
}

// openCache builds the Fast Cache selected by the URI scheme. The returned
// close function releases the backend's connections.
func openCache(cfg config.Cache) (cache.Cache, func() error, error) {
	const op = "app.openCache"

	noop := func() error { return nil }

	switch {
	case cfg.URI == "":
		return cache.Nop{}, noop, nil

	case strings.HasPrefix(cfg.URI, schemeRedis), strings.HasPrefix(cfg.URI, schemeRedisTLS):
		client, err := redis.NewClient(cfg.URI)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", op, err)
		}

		c := redis.New(
			client,
			redis.WithTTL(cfg.TTL),
			redis.WithTimeout(cfg.OpTimeout),
			redis.WithScanCount(cfg.ScanCount),
		)

		return c, client.Close, nil

	case strings.HasPrefix(cfg.URI, schemeMemory):
		return memory.New(cfg.TTL, 0), noop, nil

	default:
		return nil, nil, fmt.Errorf("%s: unsupported cache uri scheme: %q", op, cfg.URI)
	}
}
