package domain

import (
	"slices"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in-progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Terminal reports whether the status counts as resolved for SLA and analytics.
func (s TicketStatus) Terminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Priorities lists all priorities from lowest to highest.
var Priorities = []TicketPriority{TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	return slices.Contains(Priorities, p)
}

// SLATargetHours returns the default resolution target for the priority.
func (p TicketPriority) SLATargetHours() int {
	switch p {
	case TicketPriorityUrgent:
		return 4
	case TicketPriorityHigh:
		return 8
	case TicketPriorityLow:
		return 72
	default:
		return 24
	}
}

// TicketCategory groups tickets by subject area.
type TicketCategory string

const (
	TicketCategoryBug       TicketCategory = "bug"
	TicketCategoryFeature   TicketCategory = "feature"
	TicketCategorySupport   TicketCategory = "support"
	TicketCategoryTechnical TicketCategory = "technical"
	TicketCategoryBilling   TicketCategory = "billing"
	TicketCategoryAccount   TicketCategory = "account"
	TicketCategoryOther     TicketCategory = "other"
)

// Valid reports whether c is a known category.
func (c TicketCategory) Valid() bool {
	switch c {
	case TicketCategoryBug, TicketCategoryFeature, TicketCategorySupport, TicketCategoryTechnical,
		TicketCategoryBilling, TicketCategoryAccount, TicketCategoryOther:
		return true
	}
	return false
}

// Sentiment is the text-analysis verdict attached to a ticket.
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
	SentimentMixed    Sentiment = "MIXED"
)

// TagDeleted marks a soft-deleted ticket.
const TagDeleted = "deleted"

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Status        TicketStatus   `json:"status"`
	Priority      TicketPriority `json:"priority"`
	Category      TicketCategory `json:"category"`
	AssignedTo    string         `json:"assignedTo,omitempty"`
	ReportedBy    string         `json:"reportedBy,omitempty"`
	CustomerEmail string         `json:"customerEmail,omitempty"`
	CustomerName  string         `json:"customerName,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	ResolvedAt    *time.Time     `json:"resolvedAt,omitempty"`
	Tags          []string       `json:"tags"`

	AIClassified   bool      `json:"aiClassified"`
	AISentiment    Sentiment `json:"aiSentiment,omitempty"`
	AIConfidence   float64   `json:"aiConfidence"`
	AIUrgencyScore int       `json:"aiUrgencyScore"`
	AIKeyPhrases   []string  `json:"aiKeyPhrases"`

	FirstResponseAt *time.Time `json:"firstResponseAt,omitempty"`
	SLATarget       int        `json:"slaTarget"`
	Escalated       bool       `json:"escalated"`

	Comments []Comment `json:"comments"`

	// Version increments on every persisted write.
	Version int64 `json:"version"`
}

// HasTag reports whether the tag set contains tag.
func (t *Ticket) HasTag(tag string) bool {
	return slices.Contains(t.Tags, tag)
}

// AddTags merges tags into the set, ignoring duplicates and blanks.
func (t *Ticket) AddTags(tags ...string) {
	for _, tag := range tags {
		if tag == "" || t.HasTag(tag) {
			continue
		}
		t.Tags = append(t.Tags, tag)
	}
}

// Clone returns a deep copy so callers can diff before and after a mutation.
func (t *Ticket) Clone() *Ticket {
	cp := *t
	cp.Tags = slices.Clone(t.Tags)
	cp.AIKeyPhrases = slices.Clone(t.AIKeyPhrases)
	cp.Comments = make([]Comment, len(t.Comments))
	for i, c := range t.Comments {
		c.Attachments = slices.Clone(c.Attachments)
		cp.Comments[i] = c
	}
	if t.ResolvedAt != nil {
		v := *t.ResolvedAt
		cp.ResolvedAt = &v
	}
	if t.FirstResponseAt != nil {
		v := *t.FirstResponseAt
		cp.FirstResponseAt = &v
	}
	return &cp
}

// ClampUrgency bounds an urgency score to [0, 100].
func ClampUrgency(score float64) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	}
	return int(score + 0.5)
}

// ClampConfidence bounds a confidence value to [0, 1].
func ClampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
