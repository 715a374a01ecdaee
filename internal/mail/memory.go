package mail

import (
	"context"
	"sync"
)

// MemoryTransport records messages instead of sending them.
type MemoryTransport struct {
	mu       sync.Mutex
	sent     []Message
	failures map[string]error
	ledger   *ledger
}

// NewMemoryTransport returns a transport with the given daily limit (0 = unlimited).
func NewMemoryTransport(max24h int) *MemoryTransport {
	return &MemoryTransport{failures: map[string]error{}, ledger: newLedger(max24h, 0)}
}

// FailFor makes every send to recipient return err.
func (t *MemoryTransport) FailFor(recipient string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[recipient] = err
}

// Send implements Transport.
func (t *MemoryTransport) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.ledger.reserve(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, to := range msg.To {
		if err, ok := t.failures[to]; ok {
			t.ledger.record(outcomeBounced)
			return err
		}
	}
	t.sent = append(t.sent, msg)
	t.ledger.record(outcomeDelivered)
	return nil
}

// Sent returns a copy of all delivered messages.
func (t *MemoryTransport) Sent() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.sent...)
}

// Quota implements Transport.
func (t *MemoryTransport) Quota(context.Context) (Quota, error) {
	return t.ledger.quota(), nil
}

// Stats implements Transport.
func (t *MemoryTransport) Stats(context.Context) ([]StatPoint, error) {
	return t.ledger.stats(), nil
}
