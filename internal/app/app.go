package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/httplog/v2"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/linkcache/internal/adapter/cache"
	"github.com/vadimbarashkov/linkcache/internal/config"
	"github.com/vadimbarashkov/linkcache/internal/reconciler"
	"github.com/vadimbarashkov/linkcache/internal/shortcode"
	"github.com/vadimbarashkov/linkcache/internal/usecase"
	"github.com/vadimbarashkov/linkcache/internal/worker"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/linkcache/internal/adapter/delivery/http"
)

// App holds the wired components of the service.
type App struct {
	cfg    *config.Config
	logger *httplog.Logger

	db         *sqlx.DB
	closeCache func() error
	breaker    *cache.Breaker
	pool       *worker.Pool

	URLUseCase *usecase.URLUseCase
	Reconciler *reconciler.Reconciler
}

// New connects to the durable store and the cache, applies migrations and
// wires the use cases. The worker pool is started; Close releases everything.
func New(ctx context.Context, cfg *config.Config, logger *httplog.Logger) (*App, error) {
	const op = "app.New"

	gen, err := shortcode.NewGenerator(cfg.ShortCodeLength)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, repo, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open database: %w", op, err)
	}

	backend, closeCache, err := openCache(cfg.Cache)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: failed to open cache: %w", op, err)
	}

	if err := backend.Ping(ctx); err != nil {
		logger.Warn("cache unreachable at startup", slog.Any("err", err))
	}

	breaker := cache.NewBreaker(backend, cfg.Cache.FailureThreshold, cfg.Cache.HealthCheckInterval, logger.Logger)

	pool := worker.NewPool(cfg.Clicks.Workers, cfg.Clicks.QueueSize, cfg.Clicks.TaskTimeout, logger.Logger)
	pool.Start()

	return &App{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		closeCache: closeCache,
		breaker:    breaker,
		pool:       pool,
		URLUseCase: usecase.NewURLUseCase(
			repo,
			breaker,
			pool,
			gen,
			logger.Logger,
			usecase.WithQueryTimeout(cfg.Database.QueryTimeout),
		),
		Reconciler: reconciler.New(breaker, repo, cfg.Reconciler.Interval, logger.Logger),
	}, nil
}

// Close drains queued click tasks and releases the cache and the database.
func (a *App) Close() error {
	a.pool.Stop()
	a.breaker.Close()

	return errors.Join(a.closeCache(), a.db.Close())
}

// Serve runs the HTTP server and the reconciler until ctx is done. On shutdown
// the server stops accepting requests, queued clicks are flushed, and the
// reconciler performs a final run.
func (a *App) Serve(ctx context.Context) error {
	const op = "app.App.Serve"

	server := &http.Server{
		Addr:           a.cfg.HTTPServer.Addr(),
		Handler:        delivery.NewRouter(a.logger, a.URLUseCase),
		ReadTimeout:    a.cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   a.cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    a.cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: a.cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("starting server", slog.String("addr", server.Addr), slog.String("env", a.cfg.Env))

		var err error

		if a.cfg.HTTPServer.TLS() {
			err = server.ListenAndServeTLS(a.cfg.HTTPServer.CertFile, a.cfg.HTTPServer.KeyFile)
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	stopped := make(chan struct{})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTPServer.WriteTimeout)
		defer cancel()

		err := server.Shutdown(shutdownCtx)

		// Clicks still queued must reach the cache before the final reconciliation.
		a.pool.Stop()
		close(stopped)

		if err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		runCtx, cancel := context.WithCancel(context.Background())
		defer cancel()

		go func() {
			<-stopped
			cancel()
		}()

		return a.Reconciler.Run(runCtx)
	})

	return g.Wait()
}
