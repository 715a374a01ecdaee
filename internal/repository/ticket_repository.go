package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spec-kit/ticket-pipeline/internal/domain"
)

// ItemTypeTicket is the discriminator stored on every ticket item.
const ItemTypeTicket = "ticket"

var (
	// ErrNotFound is returned when no item exists for the key.
	ErrNotFound = errors.New("ticket not found")
	// ErrVersionConflict is returned when the stored version moved since it was read.
	ErrVersionConflict = errors.New("ticket version conflict")
)

// TicketQuery is a conjunctive filter over stored tickets. Zero-valued
// fields do not constrain the result; the createdAt range is inclusive.
type TicketQuery struct {
	Status      domain.TicketStatus
	Priority    domain.TicketPriority
	Category    domain.TicketCategory
	AssignedTo  string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
}

// TicketRepository stores full ticket items under their id.
//
// Put is a full-item overwrite conditioned on the version: it succeeds only
// when the stored version equals ticket.Version-1 (absent items count as 0).
// Query returns matches sorted by createdAt, newest first.
type TicketRepository interface {
	Put(ctx context.Context, ticket *domain.Ticket) error
	Get(ctx context.Context, id string) (*domain.Ticket, error)
	Query(ctx context.Context, q TicketQuery) ([]domain.Ticket, error)
	Ping(ctx context.Context) error
}

// SortKey builds the secondary key used for prefix/range lookups.
func SortKey(id string) string {
	return ItemTypeTicket + "#" + id
}

// ticketItem is the stored representation of a ticket: filter attributes
// denormalized next to the full JSON body.
type ticketItem struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	SortKey    string          `json:"sk"`
	Status     string          `json:"status"`
	Priority   string          `json:"priority"`
	Category   string          `json:"category"`
	AssignedTo string          `json:"assignedTo"`
	CreatedAt  time.Time       `json:"createdAt"`
	Version    int64           `json:"version"`
	Body       json.RawMessage `json:"body"`
}

func newTicketItem(ticket *domain.Ticket) (ticketItem, error) {
	body, err := json.Marshal(ticket)
	if err != nil {
		return ticketItem{}, fmt.Errorf("encode ticket %s: %w", ticket.ID, err)
	}
	return ticketItem{
		ID:         ticket.ID,
		Type:       ItemTypeTicket,
		SortKey:    SortKey(ticket.ID),
		Status:     string(ticket.Status),
		Priority:   string(ticket.Priority),
		Category:   string(ticket.Category),
		AssignedTo: ticket.AssignedTo,
		CreatedAt:  ticket.CreatedAt.UTC(),
		Version:    ticket.Version,
		Body:       body,
	}, nil
}

func (i ticketItem) decode() (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := json.Unmarshal(i.Body, &ticket); err != nil {
		return nil, fmt.Errorf("decode ticket %s: %w", i.ID, err)
	}
	return &ticket, nil
}

func (i ticketItem) matches(q TicketQuery) bool {
	if i.Type != ItemTypeTicket {
		return false
	}
	if q.Status != "" && i.Status != string(q.Status) {
		return false
	}
	if q.Priority != "" && i.Priority != string(q.Priority) {
		return false
	}
	if q.Category != "" && i.Category != string(q.Category) {
		return false
	}
	if q.AssignedTo != "" && i.AssignedTo != q.AssignedTo {
		return false
	}
	if q.CreatedFrom != nil && i.CreatedAt.Before(*q.CreatedFrom) {
		return false
	}
	if q.CreatedTo != nil && i.CreatedAt.After(*q.CreatedTo) {
		return false
	}
	return true
}

func checkVersion(stored, next int64) error {
	if stored != next-1 {
		return fmt.Errorf("%w: stored %d, writing %d", ErrVersionConflict, stored, next)
	}
	return nil
}

func sortAndLimit(items []ticketItem, limit int) []ticketItem {
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].CreatedAt.After(items[b].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func decodeAll(items []ticketItem) ([]domain.Ticket, error) {
	result := make([]domain.Ticket, 0, len(items))
	for _, item := range items {
		ticket, err := item.decode()
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, nil
}
