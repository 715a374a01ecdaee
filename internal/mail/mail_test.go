package mail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTransportRecordsAndFails(t *testing.T) {
	tr := NewMemoryTransport(0)
	bounce := errors.New("mailbox unavailable")
	tr.FailFor("bad@example.com", bounce)

	ctx := context.Background()
	require.NoError(t, tr.Send(ctx, Message{To: []string{"ok@example.com"}, Subject: "hi"}))
	assert.ErrorIs(t, tr.Send(ctx, Message{To: []string{"bad@example.com"}}), bounce)

	sent := tr.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "hi", sent[0].Subject)

	quota, err := tr.Quota(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, quota.SentLast24h)

	stats, err := tr.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, 2, stats[0].DeliveryAttempts)
	assert.Equal(t, 1, stats[0].Bounces)
}

func TestMemoryTransportQuota(t *testing.T) {
	tr := NewMemoryTransport(2)
	ctx := context.Background()
	require.NoError(t, tr.Send(ctx, Message{To: []string{"a@example.com"}}))
	require.NoError(t, tr.Send(ctx, Message{To: []string{"b@example.com"}}))
	assert.ErrorIs(t, tr.Send(ctx, Message{To: []string{"c@example.com"}}), ErrQuotaExceeded)
}

func TestLedgerPrunesAndBuckets(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC)
	l := newLedger(10, 5)
	l.now = func() time.Time { return now.Add(-25 * time.Hour) }
	l.record(outcomeDelivered)
	l.now = func() time.Time { return now.Add(-2 * time.Hour) }
	l.record(outcomeDelivered)
	l.record(outcomeRejected)
	l.now = func() time.Time { return now }
	l.record(outcomeDelivered)

	q := l.quota()
	assert.Equal(t, 2, q.SentLast24h)
	assert.Equal(t, 10, q.Max24h)
	assert.Equal(t, 5.0, q.MaxSendRatePer)

	stats := l.stats()
	require.Len(t, stats, 2)
	assert.Equal(t, now.Add(-2*time.Hour).Truncate(time.Hour), stats[0].Timestamp)
	assert.Equal(t, 2, stats[0].DeliveryAttempts)
	assert.Equal(t, 1, stats[0].Rejects)
	assert.Equal(t, 1, stats[1].DeliveryAttempts)
}

func TestStaticDirectory(t *testing.T) {
	dir := StaticDirectory{Domain: "example.com", Overrides: map[string]string{"lead": "team-lead@corp.test"}}

	addr, ok := dir.Lookup("Agent.Smith@Example.com")
	assert.True(t, ok)
	assert.Equal(t, "agent.smith@example.com", addr)

	addr, ok = dir.Lookup("jdoe")
	assert.True(t, ok)
	assert.Equal(t, "jdoe@example.com", addr)

	addr, _ = dir.Lookup("lead")
	assert.Equal(t, "team-lead@corp.test", addr)

	_, ok = StaticDirectory{}.Lookup("jdoe")
	assert.False(t, ok)
	_, ok = dir.Lookup("  ")
	assert.False(t, ok)
}

func TestBuildMessageRejectsBadAddress(t *testing.T) {
	_, err := buildMessage(Message{From: "not an address", To: []string{"a@example.com"}})
	assert.Error(t, err)

	m, err := buildMessage(Message{From: "noreply@example.com", To: []string{"a@example.com"}, ReplyTo: []string{"ops@example.com"}, Subject: "s", HTMLBody: "<p>x</p>"})
	require.NoError(t, err)
	assert.NotNil(t, m)
}
