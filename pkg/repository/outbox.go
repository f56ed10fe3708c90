package repository

import (
	"context"
	"time"

	"github.com/jwalitptl/frontdesk-api/internal/model"
)

// OutboxRepository is the subset of the outbox store pkg/worker needs.
type OutboxRepository interface {
	GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	UpdateStatus(ctx context.Context, id string, status model.OutboxStatus, errMsg *string, retryCount int) error
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int, error)
}
