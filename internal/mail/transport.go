// Package mail sends rendered ticket notifications and tracks sending quota.
package mail

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrQuotaExceeded is returned when the rolling 24h send limit is reached.
var ErrQuotaExceeded = errors.New("daily send quota exceeded")

// Message is one outbound email. Each message has exactly one recipient.
type Message struct {
	From     string
	To       []string
	Subject  string
	HTMLBody string
	ReplyTo  []string
}

// Quota describes the rolling 24h sending budget.
type Quota struct {
	Max24h         int     `json:"max24h"`
	SentLast24h    int     `json:"sentLast24h"`
	MaxSendRatePer float64 `json:"maxSendRate"`
}

// StatPoint is one hourly bucket of delivery outcomes.
type StatPoint struct {
	Timestamp        time.Time `json:"timestamp"`
	DeliveryAttempts int       `json:"deliveryAttempts"`
	Bounces          int       `json:"bounces"`
	Complaints       int       `json:"complaints"`
	Rejects          int       `json:"rejects"`
}

// Transport sends email and exposes monitoring data.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	Quota(ctx context.Context) (Quota, error)
	Stats(ctx context.Context) ([]StatPoint, error)
}

type sendRecord struct {
	at      time.Time
	outcome outcome
}

type outcome int

const (
	outcomeDelivered outcome = iota
	outcomeBounced
	outcomeRejected
)

// ledger keeps the last 24h of send attempts.
type ledger struct {
	mu      sync.Mutex
	max     int
	rate    float64
	now     func() time.Time
	records []sendRecord
}

func newLedger(max int, rate float64) *ledger {
	return &ledger{max: max, rate: rate, now: time.Now}
}

func (l *ledger) prune(now time.Time) {
	cutoff := now.Add(-24 * time.Hour)
	i := sort.Search(len(l.records), func(i int) bool { return l.records[i].at.After(cutoff) })
	l.records = l.records[i:]
}

func (l *ledger) sentLocked() int {
	n := 0
	for _, r := range l.records {
		if r.outcome == outcomeDelivered {
			n++
		}
	}
	return n
}

// reserve fails when the quota is exhausted.
func (l *ledger) reserve() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	if l.max > 0 && l.sentLocked() >= l.max {
		return ErrQuotaExceeded
	}
	return nil
}

func (l *ledger) record(o outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.prune(now)
	l.records = append(l.records, sendRecord{at: now, outcome: o})
}

func (l *ledger) quota() Quota {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	return Quota{Max24h: l.max, SentLast24h: l.sentLocked(), MaxSendRatePer: l.rate}
}

func (l *ledger) stats() []StatPoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now())
	var points []StatPoint
	for _, r := range l.records {
		bucket := r.at.Truncate(time.Hour)
		if len(points) == 0 || !points[len(points)-1].Timestamp.Equal(bucket) {
			points = append(points, StatPoint{Timestamp: bucket})
		}
		p := &points[len(points)-1]
		p.DeliveryAttempts++
		switch r.outcome {
		case outcomeBounced:
			p.Bounces++
		case outcomeRejected:
			p.Rejects++
		}
	}
	return points
}
