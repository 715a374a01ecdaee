package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-pipeline/internal/domain"
	"github.com/spec-kit/ticket-pipeline/internal/repository"
	"github.com/spec-kit/ticket-pipeline/pkg/util/errorutil"
)

func TestSummarizeEmpty(t *testing.T) {
	a := Summarize(nil)
	assert.Equal(t, 0, a.TotalTickets)
	assert.Equal(t, 0.0, a.ResolutionRate)
	assert.Equal(t, 0.0, a.AverageResolutionTime)
}

func TestAnalytics(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	ctx := context.Background()
	put := func(id string, age time.Duration, status domain.TicketStatus, p domain.TicketPriority, c domain.TicketCategory, s domain.Sentiment, resolveAfter time.Duration) {
		created := testNow.Add(-age)
		ticket := &domain.Ticket{ID: id, Status: status, Priority: p, Category: c, AISentiment: s, CreatedAt: created, UpdatedAt: created, Version: 1}
		if resolveAfter > 0 {
			at := created.Add(resolveAfter)
			ticket.ResolvedAt = &at
		}
		require.NoError(t, repo.Put(ctx, ticket))
	}
	put("a", 1*time.Hour, domain.TicketStatusOpen, domain.TicketPriorityHigh, domain.TicketCategoryBilling, domain.SentimentNegative, 0)
	put("b", 26*time.Hour, domain.TicketStatusResolved, domain.TicketPriorityHigh, domain.TicketCategoryTechnical, "", 2*time.Hour)
	put("c", 50*time.Hour, domain.TicketStatusClosed, domain.TicketPriorityLow, domain.TicketCategoryTechnical, domain.SentimentPositive, 4*time.Hour)
	put("d", 30*time.Hour, domain.TicketStatusInProgress, domain.TicketPriorityUrgent, domain.TicketCategoryOther, domain.SentimentNeutral, 0)
	put("old", 10*24*time.Hour, domain.TicketStatusResolved, domain.TicketPriorityLow, domain.TicketCategoryOther, "", time.Hour)

	svc := NewAnalyticsService(repo, func() time.Time { return testNow })
	a, err := svc.Analytics(ctx, 7)
	require.NoError(t, err)

	assert.Equal(t, 7, a.Days)
	assert.Equal(t, 4, a.TotalTickets)
	assert.Equal(t, 2, a.ResolvedTickets)
	assert.Equal(t, 2, a.OpenTickets)
	assert.Equal(t, 50.0, a.ResolutionRate)
	assert.Equal(t, 3.0, a.AverageResolutionTime)
	assert.Equal(t, map[string]int{"high": 2, "low": 1, "urgent": 1}, a.PriorityDistribution)
	assert.Equal(t, map[string]int{"billing": 1, "technical": 2, "other": 1}, a.CategoryDistribution)
	assert.Equal(t, map[string]int{"NEGATIVE": 1, "NEUTRAL": 2, "POSITIVE": 1}, a.SentimentDistribution)
	assert.Equal(t, map[string]int{"2026-03-10": 1, "2026-03-09": 2, "2026-03-08": 1}, a.DailyTicketCount)

	sum := 0
	for _, v := range a.PriorityDistribution {
		sum += v
	}
	assert.Equal(t, a.TotalTickets, sum)

	_, err = svc.Analytics(ctx, 0)
	assert.True(t, errorutil.HasCode(err, errorutil.CodeValidation))
}
