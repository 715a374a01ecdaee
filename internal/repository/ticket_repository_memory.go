package repository

import (
	"context"
	"sync"

	"github.com/spec-kit/ticket-pipeline/internal/domain"
)

type memoryTicketRepository struct {
	mu    sync.RWMutex
	items map[string]ticketItem
}

// NewMemoryTicketRepository builds a process-local repository for development and tests.
func NewMemoryTicketRepository() TicketRepository {
	return &memoryTicketRepository{items: make(map[string]ticketItem)}
}

func (r *memoryTicketRepository) Put(_ context.Context, ticket *domain.Ticket) error {
	item, err := newTicketItem(ticket)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := checkVersion(r.items[ticket.ID].Version, ticket.Version); err != nil {
		return err
	}
	r.items[ticket.ID] = item
	return nil
}

func (r *memoryTicketRepository) Get(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	item, ok := r.items[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return item.decode()
}

func (r *memoryTicketRepository) Query(_ context.Context, q TicketQuery) ([]domain.Ticket, error) {
	r.mu.RLock()
	matched := make([]ticketItem, 0, len(r.items))
	for _, item := range r.items {
		if item.matches(q) {
			matched = append(matched, item)
		}
	}
	r.mu.RUnlock()
	return decodeAll(sortAndLimit(matched, q.Limit))
}

func (r *memoryTicketRepository) Ping(context.Context) error {
	return nil
}
