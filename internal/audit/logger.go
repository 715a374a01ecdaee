package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Level is the severity written with each event.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Channel names a log group below the configured prefix.
type Channel string

const (
	ChannelTickets       Channel = "tickets"
	ChannelErrors        Channel = "tickets-errors"
	ChannelNotifications Channel = "ticket-notifications"
	ChannelMetrics       Channel = "ticket-metrics"
)

// Actions that additionally emit a Tickets.<action> metric record.
const (
	ActionTicketCreated  = "ticket_created"
	ActionTicketResolved = "ticket_resolved"
)

var metricActions = []string{ActionTicketCreated, ActionTicketResolved}

// Result reports what happened to one Log call.
type Result struct {
	Channel   Channel
	Group     string
	Stream    string
	Delivered bool
	FellBack  bool
	Metric    bool
	Err       error
}

// Logger writes JSON events to a Backend, falling back to the console
// logger when the backend fails. Log never returns an error to the caller.
type Logger struct {
	backend  Backend
	prefix   string
	source   string
	fallback *zap.Logger
	now      func() time.Time

	counter metric.Int64Counter

	mu      sync.Mutex
	groups  map[string]struct{}
	streams map[string]string
}

// NewLogger builds a Logger. groupPrefix is prepended to every channel name.
func NewLogger(backend Backend, groupPrefix, source string, logger *zap.Logger) *Logger {
	counter, err := otel.Meter("ticket-pipeline/audit").Int64Counter(
		"tickets.actions",
		metric.WithDescription("ticket lifecycle actions recorded by the audit log"),
	)
	if err != nil {
		logger.Warn("audit metric counter unavailable", zap.Error(err))
	}
	return &Logger{
		backend:  backend,
		prefix:   groupPrefix,
		source:   source,
		fallback: logger.Named("audit-fallback"),
		now:      time.Now,
		counter:  counter,
		groups:   map[string]struct{}{},
		streams:  map[string]string{},
	}
}

// Group returns the log group for a channel.
func (l *Logger) Group(channel Channel) string {
	return l.prefix + string(channel)
}

// Log writes payload to channel. Payloads with an "action" of ticket_created
// or ticket_resolved also produce a metric record on the metrics channel.
func (l *Logger) Log(ctx context.Context, channel Channel, payload map[string]any, level Level) Result {
	if level == "" {
		level = LevelInfo
	}
	res := l.write(ctx, channel, payload, level)

	if action, _ := payload["action"].(string); slices.Contains(metricActions, action) {
		res.Metric = true
		l.emitMetric(ctx, action, payload)
	}
	return res
}

func (l *Logger) emitMetric(ctx context.Context, action string, payload map[string]any) {
	category, _ := payload["category"].(string)
	priority, _ := payload["priority"].(string)
	if l.counter != nil {
		l.counter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("action", action),
			attribute.String("category", category),
			attribute.String("priority", priority),
		))
	}
	l.write(ctx, ChannelMetrics, map[string]any{
		"metricName": "Tickets." + action,
		"value":      1,
		"unit":       "Count",
		"dimensions": map[string]string{"category": category, "priority": priority},
	}, LevelInfo)
}

func (l *Logger) write(ctx context.Context, channel Channel, payload map[string]any, level Level) Result {
	now := l.now().UTC()
	res := Result{Channel: channel, Group: l.Group(channel)}

	body, err := json.Marshal(map[string]any{
		"timestamp": now.Format(time.RFC3339Nano),
		"level":     level,
		"source":    l.source,
		"channel":   channel,
		"payload":   payload,
	})
	if err != nil {
		return l.fall(res, payload, level, fmt.Errorf("encode audit event: %w", err))
	}

	stream, err := l.ensure(ctx, res.Group, now)
	if err != nil {
		return l.fall(res, payload, level, err)
	}
	res.Stream = stream

	if err := l.backend.PutEvents(ctx, res.Group, stream, []Event{{Timestamp: now, Message: string(body)}}); err != nil {
		l.forget(res.Group)
		return l.fall(res, payload, level, fmt.Errorf("put audit events: %w", err))
	}
	res.Delivered = true
	return res
}

// ensure provisions the group and today's stream, once per process.
func (l *Logger) ensure(ctx context.Context, group string, now time.Time) (string, error) {
	day := now.Format("2006/01/02")

	l.mu.Lock()
	_, groupReady := l.groups[group]
	stream := l.streams[group]
	l.mu.Unlock()

	if !groupReady {
		if err := l.ensureGroup(ctx, group); err != nil {
			return "", err
		}
	}
	if len(stream) > len(day) && stream[:len(day)] == day {
		return stream, nil
	}

	stream = day + "/" + uuid.NewString()[:8]
	if err := l.backend.CreateStream(ctx, group, stream); err != nil && !errors.Is(err, ErrAlreadyExists) {
		return "", fmt.Errorf("create audit stream %s: %w", stream, err)
	}

	l.mu.Lock()
	l.groups[group] = struct{}{}
	l.streams[group] = stream
	l.mu.Unlock()
	return stream, nil
}

func (l *Logger) ensureGroup(ctx context.Context, group string) error {
	existing, err := l.backend.DescribeGroups(ctx, group)
	if err != nil {
		return fmt.Errorf("describe audit groups: %w", err)
	}
	if slices.Contains(existing, group) {
		return nil
	}
	if err := l.backend.CreateGroup(ctx, group); err != nil && !errors.Is(err, ErrAlreadyExists) {
		return fmt.Errorf("create audit group %s: %w", group, err)
	}
	return nil
}

// forget drops cached provisioning so the next write re-checks the backend.
func (l *Logger) forget(group string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.groups, group)
	delete(l.streams, group)
}

func (l *Logger) fall(res Result, payload map[string]any, level Level, err error) Result {
	fields := []zap.Field{
		zap.String("channel", string(res.Channel)),
		zap.String("source", l.source),
		zap.Any("payload", payload),
		zap.NamedError("backend_error", err),
	}
	switch level {
	case LevelError:
		l.fallback.Error("audit event", fields...)
	case LevelWarn:
		l.fallback.Warn("audit event", fields...)
	default:
		l.fallback.Info("audit event", fields...)
	}
	res.FellBack = true
	res.Err = err
	return res
}
