package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/yourorg/orderreports/internal/observability/metrics"
	"github.com/yourorg/orderreports/internal/reliability/retry"
	"github.com/yourorg/orderreports/internal/repository"
)

// StagingSweeper periodically removes staged upload files that outlived
// their request, which only happens after a crash. Request paths remain
// responsible for their own cleanup; this is the safety net.
type StagingSweeper struct {
	staging  *repository.StagingArea
	logger   *slog.Logger
	interval time.Duration
	maxAge   time.Duration
	retryCfg *retry.Config
}

// NewStagingSweeper creates a sweeper that removes staged files older than
// maxAge every interval.
func NewStagingSweeper(staging *repository.StagingArea, interval, maxAge time.Duration, logger *slog.Logger) *StagingSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &StagingSweeper{
		staging:  staging,
		logger:   logger,
		interval: interval,
		maxAge:   maxAge,
		retryCfg: retry.DefaultConfig(),
	}
}

// Start begins the sweep loop and blocks until ctx is cancelled.
func (w *StagingSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("staging sweeper started",
		slog.Duration("interval", w.interval),
		slog.Duration("max_age", w.maxAge),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("staging sweeper stopped")
			return
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

// SweepOnce removes all currently stale staged files. Returns the number
// removed.
func (w *StagingSweeper) SweepOnce(ctx context.Context) int {
	stale, err := w.staging.Stale(w.maxAge)
	if err != nil {
		w.logger.Error("failed to list staging area", slog.String("error", err.Error()))
		metrics.ObserveSweep("list_error")
		return 0
	}

	removed := 0
	for _, sf := range stale {
		file := sf
		err := retry.Do(ctx, w.retryCfg, w.logger, "remove stale staged file", func(ctx context.Context) error {
			return w.staging.Discard(file)
		})
		if err != nil {
			w.logger.Error("failed to remove stale staged file",
				slog.String("path", file.Path),
				slog.String("error", err.Error()),
			)
			metrics.ObserveSweep("error")
			continue
		}

		removed++
		metrics.ObserveSweep("removed")
		w.logger.Warn("removed stale staged file",
			slog.String("path", file.Path),
			slog.Time("staged_at", file.CreatedAt),
		)
	}
	return removed
}
