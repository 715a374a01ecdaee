package service

import (
	"context"
	"strings"

	"github.com/spec-kit/ticket-pipeline/internal/domain"
	"github.com/spec-kit/ticket-pipeline/internal/events"
	"github.com/spec-kit/ticket-pipeline/internal/repository"
	apperrors "github.com/spec-kit/ticket-pipeline/pkg/util/errorutil"
)

// AssignmentService picks assignees for tickets.
type AssignmentService struct {
	tickets *TicketService
	repo    repository.TicketRepository
	agents  []string
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	TicketService *TicketService
	TicketRepo    repository.TicketRepository
	Agents        []string
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	return &AssignmentService{
		tickets: deps.TicketService,
		repo:    deps.TicketRepo,
		agents:  deps.Agents,
	}
}

// AssignTicket assigns ticket to assignee. An empty assignee selects the
// least-loaded agent from the configured pool.
func (s *AssignmentService) AssignTicket(ctx context.Context, ticketID, assignee string, actor events.Actor) (*MutationResult, error) {
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		picked, err := s.leastLoaded(ctx)
		if err != nil {
			return nil, err
		}
		assignee = picked
	}
	return s.tickets.UpdateTicket(ctx, ticketID, TicketUpdateInput{AssignedTo: &assignee, Actor: actor})
}

// Workload counts non-terminal tickets per configured agent.
func (s *AssignmentService) Workload(ctx context.Context) (map[string]int, error) {
	load := make(map[string]int, len(s.agents))
	for _, agent := range s.agents {
		load[agent] = 0
	}
	for _, status := range []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress} {
		tickets, err := s.repo.Query(ctx, repository.TicketQuery{Status: status})
		if err != nil {
			return nil, apperrors.NewPersistenceFailure(err)
		}
		for _, t := range tickets {
			if _, ok := load[t.AssignedTo]; ok {
				load[t.AssignedTo]++
			}
		}
	}
	return load, nil
}

// leastLoaded returns the agent with the fewest active tickets; ties go to
// the agent listed first.
func (s *AssignmentService) leastLoaded(ctx context.Context) (string, error) {
	if len(s.agents) == 0 {
		return "", apperrors.NewConflict("no agents configured for auto assignment", nil)
	}
	load, err := s.Workload(ctx)
	if err != nil {
		return "", err
	}
	best := s.agents[0]
	for _, agent := range s.agents[1:] {
		if load[agent] < load[best] {
			best = agent
		}
	}
	return best, nil
}
