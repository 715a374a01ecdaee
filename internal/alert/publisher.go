// Package alert publishes fire-and-forget operational alerts.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/spec-kit/ticket-pipeline/internal/persistence"
)

// Message is the envelope delivered to subscribers.
type Message struct {
	Topic     string    `json:"topic"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher sends an alert to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, message, subject string) error
}

// RedisPublisher publishes alerts on Redis Pub/Sub channels.
type RedisPublisher struct {
	rdb *persistence.Redis
	now func() time.Time
}

// NewRedisPublisher builds a publisher on the shared Redis client.
func NewRedisPublisher(rdb *persistence.Redis) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, now: time.Now}
}

// Channel returns the Redis channel used for topic.
func (p *RedisPublisher) Channel(topic string) string {
	return p.rdb.Key("alerts", topic)
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, topic, message, subject string) error {
	payload, err := json.Marshal(Message{Topic: topic, Subject: subject, Body: message, Timestamp: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	if err := p.rdb.Client.Publish(ctx, p.Channel(topic), payload).Err(); err != nil {
		return fmt.Errorf("publish alert to %s: %w", topic, err)
	}
	return nil
}

// MemoryPublisher collects alerts in process.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []Message
}

// Publish implements Publisher.
func (p *MemoryPublisher) Publish(_ context.Context, topic, message, subject string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, Message{Topic: topic, Subject: subject, Body: message, Timestamp: time.Now().UTC()})
	return nil
}

// Messages returns a copy of published alerts.
func (p *MemoryPublisher) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Message(nil), p.messages...)
}
