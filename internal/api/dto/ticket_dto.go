package dto

import (
	"time"

	"github.com/spec-kit/ticket-pipeline/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Priority      domain.TicketPriority `json:"priority"`
	Category      domain.TicketCategory `json:"category"`
	AssignedTo    string                `json:"assignedTo"`
	ReportedBy    string                `json:"reportedBy"`
	CustomerEmail string                `json:"customerEmail"`
	CustomerName  string                `json:"customerName"`
	Tags          []string              `json:"tags"`
}

// UpdateTicketRequest payload. Absent fields are left unchanged.
type UpdateTicketRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Status      *domain.TicketStatus   `json:"status"`
	Priority    *domain.TicketPriority `json:"priority"`
	Category    *domain.TicketCategory `json:"category"`
	AssignedTo  *string                `json:"assignedTo"`
	Tags        []string               `json:"tags"`
	Version     int64                  `json:"version"`
}

// CreateCommentRequest payload. Author fields default to the caller.
type CreateCommentRequest struct {
	Author      string            `json:"author"`
	AuthorType  domain.AuthorType `json:"authorType"`
	Content     string            `json:"content"`
	IsInternal  bool              `json:"isInternal"`
	Attachments []string          `json:"attachments"`
}

// AssignTicketRequest payload. An empty assignee requests auto assignment.
type AssignTicketRequest struct {
	AssignedTo string `json:"assignedTo"`
}

// TicketSummary response.
type TicketSummary struct {
	ID             string                `json:"id"`
	Title          string                `json:"title"`
	Status         domain.TicketStatus   `json:"status"`
	Priority       domain.TicketPriority `json:"priority"`
	Category       domain.TicketCategory `json:"category"`
	AssignedTo     string                `json:"assignedTo,omitempty"`
	AIUrgencyScore int                   `json:"aiUrgencyScore"`
	Escalated      bool                  `json:"escalated"`
	Tags           []string              `json:"tags"`
	CreatedAt      time.Time             `json:"createdAt"`
	UpdatedAt      time.Time             `json:"updatedAt"`
}

// EffectResponse reports one side effect of a mutation.
type EffectResponse struct {
	Effect string `json:"effect"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// MutationResponse carries the full ticket and side-effect outcomes.
type MutationResponse struct {
	Data    *domain.Ticket   `json:"data"`
	Effects []EffectResponse `json:"effects"`
}
