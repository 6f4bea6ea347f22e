// Package postgres opens pooled sqlx connections to PostgreSQL through the pgx
// stdlib driver and applies the embedded schema migrations.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DriverName is the database/sql driver registered by pgx.
const DriverName = "pgx"

// PoolConfig holds the connection pool settings applied after connecting.
type PoolConfig struct {
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	MaxIdleConns    int
	MaxOpenConns    int
}

// DefaultPoolConfig returns the pool settings used when no option overrides them.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		ConnMaxIdleTime: 5 * time.Minute,
		ConnMaxLifetime: 30 * time.Minute,
		MaxIdleConns:    5,
		MaxOpenConns:    25,
	}
}

type Option func(*PoolConfig)

func WithConnMaxIdleTime(d time.Duration) Option {
	return func(c *PoolConfig) {
		if d > 0 {
			c.ConnMaxIdleTime = d
		}
	}
}

func WithConnMaxLifetime(d time.Duration) Option {
	return func(c *PoolConfig) {
		if d > 0 {
			c.ConnMaxLifetime = d
		}
	}
}

func WithMaxIdleConns(n int) Option {
	return func(c *PoolConfig) {
		if n > 0 {
			c.MaxIdleConns = n
		}
	}
}

func WithMaxOpenConns(n int) Option {
	return func(c *PoolConfig) {
		if n > 0 {
			c.MaxOpenConns = n
		}
	}
}

// NewPoolConfig applies opts over DefaultPoolConfig. Non-positive values keep the defaults.
func NewPoolConfig(opts ...Option) PoolConfig {
	cfg := DefaultPoolConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// New connects to dsn, verifies the connection and applies the pool settings.
func New(ctx context.Context, dsn string, opts ...Option) (*sqlx.DB, error) {
	const op = "postgres.New"

	db, err := sqlx.ConnectContext(ctx, DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to connect to database: %w", op, err)
	}

	cfg := NewPoolConfig(opts...)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	return db, nil
}
