// Package reconciler moves pending click counters from the Fast Cache into the
// durable store.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/vadimbarashkov/linkcache/internal/entity"
)

var ErrAlreadyRunning = errors.New("reconciliation already running")

const (
	DefaultInterval = time.Minute

	drainTimeout = 10 * time.Second
)

type pendingStore interface {
	ScanPending(ctx context.Context) ([]entity.PendingClicks, error)
	SettlePending(ctx context.Context, shortCode string, n int64) error
}

type clickStore interface {
	IncrementClicks(ctx context.Context, shortCode string, delta int64) error
}

// Report summarizes one reconciliation run.
type Report struct {
	Scanned  int           // counters read from the cache
	Applied  int           // counters applied to the durable store and settled
	Orphaned int           // counters whose short code no longer exists
	Failed   int           // counters left in place for the next run
	Clicks   int64         // clicks applied to the durable store
	Duration time.Duration // wall time of the run
}

func (r Report) attrs() []any {
	return []any{
		slog.Int("scanned", r.Scanned),
		slog.Int("applied", r.Applied),
		slog.Int("orphaned", r.Orphaned),
		slog.Int("failed", r.Failed),
		slog.Int64("clicks", r.Clicks),
		slog.Duration("duration", r.Duration),
	}
}

type Reconciler struct {
	pending  pendingStore
	clicks   clickStore
	interval time.Duration
	logger   *slog.Logger

	running atomic.Bool
}

func New(pending pendingStore, clicks clickStore, interval time.Duration, logger *slog.Logger) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Reconciler{
		pending:  pending,
		clicks:   clicks,
		interval: interval,
		logger:   logger,
	}
}

// Run reconciles on every tick until ctx is done, then performs a final run
// so counters recorded since the last tick are not left behind.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", slog.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.drain()
			return nil
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	report, err := r.RunOnce(ctx)
	if err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			r.logger.Warn("previous reconciliation still running, skipping tick")
			return
		}

		r.logger.Error("reconciliation failed", slog.Any("err", err))
		return
	}

	if report.Scanned > 0 {
		r.logger.Info("reconciliation finished", report.attrs()...)
	}
}

func (r *Reconciler) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	report, err := r.RunOnce(ctx)
	if err != nil {
		r.logger.Error("final reconciliation failed", slog.Any("err", err))
		return
	}

	r.logger.Info("final reconciliation finished", report.attrs()...)
}

// RunOnce applies every pending counter to the durable store. A counter is
// settled only after its clicks were applied, so a failed counter stays in the
// cache and is retried by the next run. Only one run may be in flight.
func (r *Reconciler) RunOnce(ctx context.Context) (Report, error) {
	const op = "reconciler.Reconciler.RunOnce"

	if !r.running.CompareAndSwap(false, true) {
		return Report{}, fmt.Errorf("%s: %w", op, ErrAlreadyRunning)
	}
	defer r.running.Store(false)

	start := time.Now()

	pending, err := r.pending.ScanPending(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("%s: failed to scan pending clicks: %w", op, err)
	}

	report := Report{Scanned: len(pending)}

	for _, p := range pending {
		if ctx.Err() != nil {
			report.Failed += len(pending) - report.Applied - report.Orphaned - report.Failed
			break
		}

		r.apply(ctx, p, &report)
	}

	report.Duration = time.Since(start)

	return report, nil
}

func (r *Reconciler) apply(ctx context.Context, p entity.PendingClicks, report *Report) {
	logger := r.logger.With(slog.String("short_code", p.ShortCode))

	if p.Count <= 0 {
		if err := r.pending.SettlePending(ctx, p.ShortCode, p.Count); err != nil {
			logger.Warn("failed to drop empty counter", slog.Any("err", err))
		}
		report.Applied++
		return
	}

	err := r.clicks.IncrementClicks(ctx, p.ShortCode, p.Count)
	switch {
	case errors.Is(err, entity.ErrURLNotFound):
		logger.Warn("dropping clicks for unknown short code", slog.Int64("clicks", p.Count))
		if err := r.pending.SettlePending(ctx, p.ShortCode, p.Count); err != nil {
			logger.Warn("failed to drop orphaned counter", slog.Any("err", err))
		}
		report.Orphaned++
		return
	case err != nil:
		logger.Error("failed to apply clicks", slog.Int64("clicks", p.Count), slog.Any("err", err))
		report.Failed++
		return
	}

	report.Applied++
	report.Clicks += p.Count

	if err := r.pending.SettlePending(ctx, p.ShortCode, p.Count); err != nil {
		// The clicks are durable; leaving the counter means they are applied
		// again next run, which at-least-once accounting accepts.
		logger.Error("failed to settle applied clicks", slog.Int64("clicks", p.Count), slog.Any("err", err))
	}
}
