package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/frontdesk-api/pkg/logger"
	"github.com/jwalitptl/frontdesk-api/pkg/repository"
)

// OutboxCleanupWorker purges processed outbox events past the retention window.
type OutboxCleanupWorker struct {
	repo      repository.OutboxRepository
	retention time.Duration
	interval  time.Duration
	logger    *logger.Logger
	now       func() time.Time
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, retention, interval time.Duration, logger *logger.Logger) *OutboxCleanupWorker {
	return &OutboxCleanupWorker{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

func (w *OutboxCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Cleanup(ctx); err != nil {
				w.logger.Error(err, "Error cleaning up outbox events")
			}
		}
	}
}

func (w *OutboxCleanupWorker) Cleanup(ctx context.Context) (int, error) {
	cutoff := w.now().Add(-w.retention)

	n, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return n, fmt.Errorf("failed to cleanup outbox events: %w", err)
	}

	if n > 0 {
		w.logger.Info("Cleaned up outbox events", "count", n, "cutoff", cutoff)
	}
	return n, nil
}
