package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-pipeline/internal/alert"
	"github.com/spec-kit/ticket-pipeline/internal/config"
	"github.com/spec-kit/ticket-pipeline/internal/domain"
	"github.com/spec-kit/ticket-pipeline/internal/events"
)

func TestAlertWorker(t *testing.T) {
	pub := &alert.MemoryPublisher{}
	dispatcher := events.NewInMemoryDispatcher()
	StartAlertWorker(dispatcher, NewAlertWorker(pub, config.AlertConfig{Enabled: true, Topic: "ops", UrgencyThreshold: 80}, zap.NewNop()))
	ctx := context.Background()

	publish := func(et events.EventType, payload any) {
		require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: et, TicketID: "t1", Payload: payload}))
	}

	publish(events.EventTicketCreated, events.TicketSnapshotPayload{Priority: domain.TicketPriorityHigh, AIUrgencyScore: 71})
	assert.Empty(t, pub.Messages())

	publish(events.EventTicketCreated, events.TicketSnapshotPayload{Priority: domain.TicketPriorityHigh, AIUrgencyScore: 85})
	publish(events.EventTicketCreated, events.TicketSnapshotPayload{Priority: domain.TicketPriorityUrgent})
	publish(events.EventTicketEscalated, events.TicketSnapshotPayload{Priority: domain.TicketPriorityHigh, Escalated: true})
	publish(events.EventTicketUpdated, events.TicketUpdatedPayload{TicketSnapshotPayload: events.TicketSnapshotPayload{Priority: domain.TicketPriorityUrgent, Status: domain.TicketStatusOpen}, OldPriority: domain.TicketPriorityLow})
	publish(events.EventTicketUpdated, events.TicketUpdatedPayload{TicketSnapshotPayload: events.TicketSnapshotPayload{Priority: domain.TicketPriorityUrgent, Status: domain.TicketStatusOpen}, OldPriority: domain.TicketPriorityUrgent})
	publish(events.EventTicketUpdated, events.TicketUpdatedPayload{TicketSnapshotPayload: events.TicketSnapshotPayload{Priority: domain.TicketPriorityUrgent, Status: domain.TicketStatusClosed}, OldPriority: domain.TicketPriorityHigh})

	msgs := pub.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "ops", msgs[0].Topic)
	assert.Equal(t, "Urgent ticket created", msgs[0].Subject)
	assert.Equal(t, "Ticket escalated by negative sentiment", msgs[2].Subject)
	assert.Contains(t, msgs[3].Body, "priority=urgent")
}

func TestAlertWorkerDisabled(t *testing.T) {
	pub := &alert.MemoryPublisher{}
	dispatcher := events.NewInMemoryDispatcher()
	StartAlertWorker(dispatcher, NewAlertWorker(pub, config.AlertConfig{Enabled: false}, zap.NewNop()))
	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventTicketCreated, Payload: events.TicketSnapshotPayload{Priority: domain.TicketPriorityUrgent}}))
	assert.Empty(t, pub.Messages())
}
