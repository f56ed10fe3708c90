package document

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/repository"
	"github.com/jwalitptl/frontdesk-api/internal/store"
)

type outboxRepository struct {
	collection[model.OutboxEvent]
}

func NewOutboxRepository(s store.Store) repository.OutboxRepository {
	return &outboxRepository{collection[model.OutboxEvent]{store: s, name: store.CollectionOutbox, resource: "outbox event"}}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	event.CreatedAt = time.Now().UTC()
	event.Status = model.OutboxStatusPending
	id, err := r.create(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	event.ID = id
	return nil
}

// GetPendingEvents returns up to limit pending events, oldest first.
func (r *outboxRepository) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	events, err := r.list(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending events: %w", err)
	}

	pending := make([]*model.OutboxEvent, 0, len(events))
	for _, e := range events {
		if e.Status == model.OutboxStatusPending {
			pending = append(pending, e)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id string, status model.OutboxStatus, errMsg *string, retryCount int) error {
	fields := map[string]interface{}{
		"status":     status,
		"retryCount": retryCount,
	}
	if errMsg != nil {
		fields["errorMessage"] = *errMsg
	}
	if status == model.OutboxStatusProcessed {
		fields["processedAt"] = time.Now().UTC()
	}
	if err := r.update(ctx, id, fields); err != nil {
		return fmt.Errorf("failed to update outbox event %s: %w", id, err)
	}
	return nil
}

// DeleteProcessedBefore removes processed events older than cutoff and
// returns how many were deleted.
func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	events, err := r.list(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list outbox events: %w", err)
	}

	deleted := 0
	for _, e := range events {
		if e.Status != model.OutboxStatusProcessed || e.ProcessedAt == nil || !e.ProcessedAt.Before(cutoff) {
			continue
		}
		if err := r.delete(ctx, e.ID); err != nil {
			return deleted, fmt.Errorf("failed to delete outbox event %s: %w", e.ID, err)
		}
		deleted++
	}
	return deleted, nil
}
