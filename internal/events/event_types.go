package events

import (
	"time"

	"github.com/spec-kit/ticket-pipeline/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated   EventType = "ticket_created"
	EventTicketUpdated   EventType = "ticket_updated"
	EventTicketResolved  EventType = "ticket_resolved"
	EventTicketCommented EventType = "ticket_commented"
	EventTicketEscalated EventType = "ticket_escalated"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.AuthorType `json:"type"`
	Name string            `json:"name,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticketId"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketSnapshotPayload carries the classification-relevant state of a ticket.
type TicketSnapshotPayload struct {
	Title          string                `json:"title"`
	Status         domain.TicketStatus   `json:"status"`
	Priority       domain.TicketPriority `json:"priority"`
	Category       domain.TicketCategory `json:"category"`
	AIUrgencyScore int                   `json:"aiUrgencyScore"`
	Escalated      bool                  `json:"escalated"`
	AssignedTo     string                `json:"assignedTo,omitempty"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	TicketSnapshotPayload
	OldStatus     domain.TicketStatus   `json:"oldStatus"`
	OldPriority   domain.TicketPriority `json:"oldPriority"`
	OldAssignedTo string                `json:"oldAssignedTo,omitempty"`
}

// TicketResolvedPayload payload.
type TicketResolvedPayload struct {
	TicketSnapshotPayload
	ResolutionHours float64 `json:"resolutionHours"`
}

// TicketCommentedPayload payload.
type TicketCommentedPayload struct {
	CommentID   string            `json:"commentId"`
	AuthorType  domain.AuthorType `json:"authorType"`
	IsInternal  bool              `json:"isInternal"`
	BodyPreview string            `json:"bodyPreview"`
}

// Snapshot builds the shared payload for a ticket.
func Snapshot(t *domain.Ticket) TicketSnapshotPayload {
	return TicketSnapshotPayload{
		Title:          t.Title,
		Status:         t.Status,
		Priority:       t.Priority,
		Category:       t.Category,
		AIUrgencyScore: t.AIUrgencyScore,
		Escalated:      t.Escalated,
		AssignedTo:     t.AssignedTo,
	}
}
