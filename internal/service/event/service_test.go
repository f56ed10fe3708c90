package event

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/frontdesk-api/internal/model"
	"github.com/jwalitptl/frontdesk-api/internal/repository/document"
	"github.com/jwalitptl/frontdesk-api/internal/store/memory"
)

func TestEmitWritesPendingOutboxEvent(t *testing.T) {
	repo := document.NewOutboxRepository(memory.New())
	svc := NewEventService(repo)
	ctx := context.Background()

	require.NoError(t, svc.Emit(ctx, model.EventPatientDischarged, map[string]string{"patientId": "p1"}))

	events, err := repo.GetPendingEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventPatientDischarged, events[0].EventType)
	assert.Equal(t, model.OutboxStatusPending, events[0].Status)
	assert.NotEmpty(t, events[0].ID)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, "p1", payload["patientId"])
}

func TestEmitRejectsUnencodablePayload(t *testing.T) {
	svc := NewEventService(document.NewOutboxRepository(memory.New()))
	err := svc.Emit(context.Background(), "x", make(chan int))
	assert.Error(t, err)
}
