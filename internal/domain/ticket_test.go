package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClampUrgency(t *testing.T) {
	assert.Equal(t, 0, ClampUrgency(-12))
	assert.Equal(t, 100, ClampUrgency(140))
	assert.Equal(t, 57, ClampUrgency(57))
	assert.Equal(t, 53, ClampUrgency(52.6))
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-0.2))
	assert.Equal(t, 1.0, ClampConfidence(1.1))
	assert.Equal(t, 0.4, ClampConfidence(0.4))
}

func TestTicketAddTagsDeduplicates(t *testing.T) {
	ticket := &Ticket{Tags: []string{"vip"}}
	ticket.AddTags("vip", "", TagDeleted, TagDeleted)
	assert.Equal(t, []string{"vip", TagDeleted}, ticket.Tags)
	assert.True(t, ticket.HasTag(TagDeleted))
}

func TestTicketCloneIsDeep(t *testing.T) {
	now := time.Now()
	orig := &Ticket{
		Tags:       []string{"a"},
		ResolvedAt: &now,
		Comments:   []Comment{{ID: "c1", Attachments: []string{"s3://x"}}},
	}
	cp := orig.Clone()
	cp.Tags[0] = "b"
	cp.Comments[0].Attachments[0] = "s3://y"
	*cp.ResolvedAt = now.Add(time.Hour)

	assert.Equal(t, "a", orig.Tags[0])
	assert.Equal(t, "s3://x", orig.Comments[0].Attachments[0])
	assert.Equal(t, now, *orig.ResolvedAt)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, TicketStatusOpen.Terminal())
	assert.False(t, TicketStatusInProgress.Terminal())
	assert.True(t, TicketStatusResolved.Terminal())
	assert.True(t, TicketStatusClosed.Terminal())
}
