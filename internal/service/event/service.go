package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/repository"
)

// Emitter records domain events for asynchronous publication.
type Emitter interface {
	Emit(ctx context.Context, eventType string, payload interface{}) error
}

// EventService writes events to the outbox collection. The outbox worker
// publishes them to the broker.
type EventService struct {
	outboxRepo repository.OutboxRepository
}

func NewEventService(outboxRepo repository.OutboxRepository) *EventService {
	return &EventService{outboxRepo: outboxRepo}
}

func (s *EventService) Emit(ctx context.Context, eventType string, payload interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		EventType: eventType,
		Payload:   payloadJSON,
	}
	if err := s.outboxRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create outbox event: %w", err)
	}
	return nil
}

// Nop discards events.
type Nop struct{}

func (Nop) Emit(context.Context, string, interface{}) error { return nil }
