package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/nikpour310/accountinox/internal/repository"
)

// Reaper watches for idempotency records stuck in_progress past the grace
// period. Such records mean a verification attempt died mid-flight; the
// true payment state lives at the gateway, so the default is to surface
// them for operator review rather than silently reopen the slot.
type Reaper struct {
	idempotency repository.IdempotencyRepository
	interval    time.Duration
	grace       time.Duration
	autoRelease bool
	logger      *slog.Logger
}

// NewReaper creates a new reaper. With autoRelease off it only reports;
// with it on, stale records are deleted so the gateway's next redelivery
// can be admitted again.
func NewReaper(
	idempotency repository.IdempotencyRepository,
	interval, grace time.Duration,
	autoRelease bool,
	logger *slog.Logger,
) *Reaper {
	if interval <= 0 {
		interval = time.Minute
	}
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	return &Reaper{
		idempotency: idempotency,
		interval:    interval,
		grace:       grace,
		autoRelease: autoRelease,
		logger:      logger,
	}
}

// Run blocks until the context is cancelled, sweeping on every tick.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("idempotency reaper started",
		slog.Duration("interval", r.interval),
		slog.Duration("grace", r.grace),
		slog.Bool("auto_release", r.autoRelease),
	)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("idempotency reaper stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.grace)

	stale, err := r.idempotency.StaleInProgress(ctx, cutoff)
	if err != nil {
		r.logger.ErrorContext(ctx, "reaper sweep failed",
			slog.String("error", err.Error()),
		)
		return
	}

	staleAdmissions.Set(float64(len(stale)))

	if len(stale) == 0 {
		return
	}

	for _, record := range stale {
		r.logger.WarnContext(ctx, "idempotency record stuck in_progress",
			slog.String("key", record.Key),
			slog.Time("started_at", record.StartedAt),
		)
	}

	if !r.autoRelease {
		return
	}

	released, err := r.idempotency.ReleaseStale(ctx, cutoff)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to release stale idempotency records",
			slog.String("error", err.Error()),
		)
		return
	}

	r.logger.InfoContext(ctx, "released stale idempotency records",
		slog.Int64("released", released),
	)
}
