package service

import (
	"context"
	"math"
	"time"

	"github.com/spec-kit/ticket-pipeline/internal/domain"
	"github.com/spec-kit/ticket-pipeline/internal/repository"
	"github.com/spec-kit/ticket-pipeline/pkg/util/errorutil"
)

// Analytics summarizes tickets created in a trailing window.
type Analytics struct {
	Days                  int            `json:"days"`
	TotalTickets          int            `json:"totalTickets"`
	OpenTickets           int            `json:"openTickets"`
	ResolvedTickets       int            `json:"resolvedTickets"`
	ResolutionRate        float64        `json:"resolutionRate"`
	AverageResolutionTime float64        `json:"averageResolutionTime"`
	PriorityDistribution  map[string]int `json:"priorityDistribution"`
	CategoryDistribution  map[string]int `json:"categoryDistribution"`
	SentimentDistribution map[string]int `json:"sentimentDistribution"`
	DailyTicketCount      map[string]int `json:"dailyTicketCount"`
}

// AnalyticsService reduces stored tickets into dashboard figures.
type AnalyticsService struct {
	tickets repository.TicketRepository
	now     func() time.Time
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(tickets repository.TicketRepository, clock func() time.Time) *AnalyticsService {
	if clock == nil {
		clock = time.Now
	}
	return &AnalyticsService{tickets: tickets, now: clock}
}

// Analytics scans tickets created within the last days days.
func (s *AnalyticsService) Analytics(ctx context.Context, days int) (*Analytics, error) {
	if days <= 0 {
		return nil, errorutil.NewValidationError("days must be positive", map[string]any{"days": days})
	}
	to := s.now().UTC()
	from := to.AddDate(0, 0, -days)
	tickets, err := s.tickets.Query(ctx, repository.TicketQuery{CreatedFrom: &from, CreatedTo: &to})
	if err != nil {
		return nil, errorutil.NewPersistenceFailure(err)
	}
	a := Summarize(tickets)
	a.Days = days
	return a, nil
}

// Summarize reduces a ticket set. It never divides by zero.
func Summarize(tickets []domain.Ticket) *Analytics {
	a := &Analytics{
		TotalTickets:          len(tickets),
		PriorityDistribution:  map[string]int{},
		CategoryDistribution:  map[string]int{},
		SentimentDistribution: map[string]int{},
		DailyTicketCount:      map[string]int{},
	}
	var resolvedHours float64
	var timed int
	for _, t := range tickets {
		if t.Status.Terminal() {
			a.ResolvedTickets++
			if t.ResolvedAt != nil {
				resolvedHours += t.ResolvedAt.Sub(t.CreatedAt).Hours()
				timed++
			}
		} else {
			a.OpenTickets++
		}
		a.PriorityDistribution[string(t.Priority)]++
		a.CategoryDistribution[string(t.Category)]++
		sentiment := t.AISentiment
		if sentiment == "" {
			sentiment = domain.SentimentNeutral
		}
		a.SentimentDistribution[string(sentiment)]++
		a.DailyTicketCount[t.CreatedAt.UTC().Format("2006-01-02")]++
	}
	if a.TotalTickets > 0 {
		a.ResolutionRate = 100 * float64(a.ResolvedTickets) / float64(a.TotalTickets)
	}
	if timed > 0 {
		a.AverageResolutionTime = round2(resolvedHours / float64(timed))
	}
	return a
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
