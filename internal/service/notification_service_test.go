package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-pipeline/internal/audit"
	"github.com/spec-kit/ticket-pipeline/internal/config"
	"github.com/spec-kit/ticket-pipeline/internal/domain"
	"github.com/spec-kit/ticket-pipeline/internal/mail"
)

// blockingTransport blocks sends to slow recipients until the context ends
// and tracks the peak number of concurrent sends.
type blockingTransport struct {
	mail.Transport
	slow     map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	sent     []string
}

func (b *blockingTransport) Send(ctx context.Context, msg mail.Message) error {
	n := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		p := b.peak.Load()
		if n <= p || b.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if b.slow[msg.To[0]] {
		<-ctx.Done()
		return ctx.Err()
	}
	time.Sleep(5 * time.Millisecond)
	b.mu.Lock()
	b.sent = append(b.sent, msg.To[0])
	b.mu.Unlock()
	return nil
}

func notifyConfig() config.NotificationConfig {
	return config.NotificationConfig{
		Enabled:           true,
		EmailFrom:         "noreply@example.com",
		DefaultRecipients: []string{"ops@example.com", "lead@example.com"},
		Concurrency:       2,
		SendTimeout:       50 * time.Millisecond,
		TicketURLBase:     "https://support.example.com/tickets/",
	}
}

func sampleTicket() *domain.Ticket {
	return &domain.Ticket{
		ID:          "t-42",
		Title:       "Invoice missing",
		Description: "Where is my <b>invoice</b>?",
		Status:      domain.TicketStatusOpen,
		Priority:    domain.TicketPriorityHigh,
		Category:    domain.TicketCategoryBilling,
		AssignedTo:  "agent@example.com",
		ReportedBy:  "OPS@example.com",
	}
}

func TestRecipientsUnionAndDedupe(t *testing.T) {
	n := NewNotificationService(mail.NewMemoryTransport(0), mail.StaticDirectory{}, nil, zap.NewNop(), notifyConfig())
	ticket := sampleTicket()
	ticket.CustomerEmail = "bob"

	got := n.Recipients(ticket, nil)
	assert.Equal(t, []string{"ops@example.com", "lead@example.com", "agent@example.com"}, got)

	got = n.Recipients(ticket, []string{"x@example.com", "X@example.com"})
	assert.Equal(t, []string{"x@example.com"}, got)
}

func TestNotifyIsolatesRecipientFailures(t *testing.T) {
	transport := mail.NewMemoryTransport(0)
	transport.FailFor("lead@example.com", errors.New("550 mailbox unavailable"))
	backend := audit.NewMemoryBackend()
	auditLog := audit.NewLogger(backend, "/support/", "test", zap.NewNop())
	n := NewNotificationService(transport, mail.StaticDirectory{}, auditLog, zap.NewNop(), notifyConfig())

	report := n.Notify(context.Background(), sampleTicket(), NotificationCreated, nil, nil)
	assert.False(t, report.OK())
	assert.ElementsMatch(t, []string{"ops@example.com", "agent@example.com"}, report.Sent)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "lead@example.com", report.Failed[0].Recipient)

	assert.Len(t, backend.Events("/support/tickets-errors"), 1)
	assert.Len(t, backend.Events("/support/ticket-notifications"), 1)
}

func TestNotifyBoundsConcurrencyAndTimesOut(t *testing.T) {
	transport := &blockingTransport{slow: map[string]bool{"lead@example.com": true}}
	cfg := notifyConfig()
	cfg.DefaultRecipients = []string{"a@example.com", "b@example.com", "lead@example.com", "c@example.com", "d@example.com"}
	n := NewNotificationService(transport, nil, nil, zap.NewNop(), cfg)

	ticket := sampleTicket()
	ticket.AssignedTo, ticket.ReportedBy = "", ""
	report := n.Notify(context.Background(), ticket, NotificationUpdated, nil, nil)

	assert.LessOrEqual(t, transport.peak.Load(), int32(2))
	assert.Len(t, report.Sent, 4)
	require.Len(t, report.Failed, 1)
	assert.ErrorIs(t, report.Failed[0].Err, context.DeadlineExceeded)
}

func TestNotifyDisabled(t *testing.T) {
	cfg := notifyConfig()
	cfg.Enabled = false
	transport := mail.NewMemoryTransport(0)
	n := NewNotificationService(transport, nil, nil, zap.NewNop(), cfg)

	report := n.Notify(context.Background(), sampleTicket(), NotificationCreated, nil, nil)
	assert.NotEmpty(t, report.Skipped)
	assert.Empty(t, transport.Sent())
}

func TestRenderNotification(t *testing.T) {
	comment := &domain.Comment{Author: "Agent Smith", Content: "Resent <the> invoice", Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	subject, body, err := renderNotification(sampleTicket(), NotificationCommented, comment, "https://support.example.com/tickets/")
	require.NoError(t, err)
	assert.Equal(t, "New comment on ticket: Invoice missing [#t-42]", subject)
	assert.Contains(t, body, "Agent Smith")
	assert.Contains(t, body, "Resent &lt;the&gt; invoice")
	assert.Contains(t, body, "&lt;b&gt;invoice&lt;/b&gt;")
	assert.Contains(t, body, "high")
	assert.Contains(t, body, "billing")
	assert.Contains(t, body, `href="https://support.example.com/tickets/t-42"`)

	subject, body, err = renderNotification(sampleTicket(), NotificationResolved, comment, "")
	require.NoError(t, err)
	assert.Equal(t, "Ticket resolved: Invoice missing [#t-42]", subject)
	assert.NotContains(t, body, "Agent Smith")

	_, _, err = renderNotification(sampleTicket(), "escalated", nil, "")
	assert.Error(t, err)
}
