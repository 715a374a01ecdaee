// Package audit writes structured ticket events to a grouped log backend.
package audit

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/ticket-pipeline/internal/persistence"
)

// ErrAlreadyExists is returned by a backend when a group or stream is created twice.
var ErrAlreadyExists = errors.New("audit resource already exists")

// Event is one serialized log line.
type Event struct {
	Timestamp time.Time
	Message   string
}

// Backend is the grouped log store. Create calls may return ErrAlreadyExists.
type Backend interface {
	DescribeGroups(ctx context.Context, prefix string) ([]string, error)
	CreateGroup(ctx context.Context, name string) error
	CreateStream(ctx context.Context, group, stream string) error
	PutEvents(ctx context.Context, group, stream string, events []Event) error
}

// RedisBackend keeps groups and streams as Redis sets and events as Redis streams.
type RedisBackend struct {
	rdb *persistence.Redis
}

// NewRedisBackend builds a backend on the shared Redis client.
func NewRedisBackend(rdb *persistence.Redis) *RedisBackend {
	return &RedisBackend{rdb: rdb}
}

func (b *RedisBackend) groupsKey() string { return b.rdb.Key("audit", "groups") }

func (b *RedisBackend) streamsKey(group string) string { return b.rdb.Key("audit", "streams", group) }

// StreamKey returns the Redis stream holding events for group/stream.
func (b *RedisBackend) StreamKey(group, stream string) string {
	return b.rdb.Key("audit", "events", group, stream)
}

func (b *RedisBackend) DescribeGroups(ctx context.Context, prefix string) ([]string, error) {
	members, err := b.rdb.Client.SMembers(ctx, b.groupsKey()).Result()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range members {
		if strings.HasPrefix(m, prefix) {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (b *RedisBackend) CreateGroup(ctx context.Context, name string) error {
	added, err := b.rdb.Client.SAdd(ctx, b.groupsKey(), name).Result()
	if err != nil {
		return err
	}
	if added == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (b *RedisBackend) CreateStream(ctx context.Context, group, stream string) error {
	added, err := b.rdb.Client.SAdd(ctx, b.streamsKey(group), stream).Result()
	if err != nil {
		return err
	}
	if added == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (b *RedisBackend) PutEvents(ctx context.Context, group, stream string, events []Event) error {
	key := b.StreamKey(group, stream)
	_, err := b.rdb.Client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, ev := range events {
			pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: key,
				Values: map[string]any{
					"timestamp": ev.Timestamp.UTC().Format(time.RFC3339Nano),
					"message":   ev.Message,
				},
			})
		}
		return nil
	})
	return err
}

// MemoryBackend is an in-process Backend.
type MemoryBackend struct {
	mu      sync.Mutex
	groups  map[string]map[string][]Event
	calls   map[string]int
	failErr error
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{groups: map[string]map[string][]Event{}, calls: map[string]int{}}
}

// SetFailure makes every call return err until it is reset with nil.
func (b *MemoryBackend) SetFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failErr = err
}

// Calls reports how many times op was invoked.
func (b *MemoryBackend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// Events returns all events written to group, across streams, in write order per stream.
func (b *MemoryBackend) Events(group string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	streams := make([]string, 0, len(b.groups[group]))
	for s := range b.groups[group] {
		streams = append(streams, s)
	}
	sort.Strings(streams)
	var out []Event
	for _, s := range streams {
		out = append(out, b.groups[group][s]...)
	}
	return out
}

func (b *MemoryBackend) enter(op string) error {
	b.calls[op]++
	return b.failErr
}

func (b *MemoryBackend) DescribeGroups(_ context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("describeGroups"); err != nil {
		return nil, err
	}
	var out []string
	for g := range b.groups {
		if strings.HasPrefix(g, prefix) {
			out = append(out, g)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (b *MemoryBackend) CreateGroup(_ context.Context, name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("createGroup"); err != nil {
		return err
	}
	if _, ok := b.groups[name]; ok {
		return ErrAlreadyExists
	}
	b.groups[name] = map[string][]Event{}
	return nil
}

func (b *MemoryBackend) CreateStream(_ context.Context, group, stream string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("createStream"); err != nil {
		return err
	}
	streams, ok := b.groups[group]
	if !ok {
		return errors.New("group does not exist: " + group)
	}
	if _, ok := streams[stream]; ok {
		return ErrAlreadyExists
	}
	streams[stream] = nil
	return nil
}

func (b *MemoryBackend) PutEvents(_ context.Context, group, stream string, events []Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.enter("putEvents"); err != nil {
		return err
	}
	streams, ok := b.groups[group]
	if !ok {
		return errors.New("group does not exist: " + group)
	}
	if _, ok := streams[stream]; !ok {
		return errors.New("stream does not exist: " + stream)
	}
	streams[stream] = append(streams[stream], events...)
	return nil
}
