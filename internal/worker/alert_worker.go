package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-pipeline/internal/alert"
	"github.com/spec-kit/ticket-pipeline/internal/config"
	"github.com/spec-kit/ticket-pipeline/internal/domain"
	"github.com/spec-kit/ticket-pipeline/internal/events"
)

// AlertWorker turns high-urgency ticket events into operational alerts.
type AlertWorker struct {
	publisher alert.Publisher
	cfg       config.AlertConfig
	logger    *zap.Logger
}

// NewAlertWorker builds the worker.
func NewAlertWorker(publisher alert.Publisher, cfg config.AlertConfig, logger *zap.Logger) *AlertWorker {
	return &AlertWorker{publisher: publisher, cfg: cfg, logger: logger.Named("alerts")}
}

// StartAlertWorker registers alert handlers on the dispatcher.
func StartAlertWorker(dispatcher events.Dispatcher, w *AlertWorker) {
	if dispatcher == nil || w == nil || !w.cfg.Enabled || w.publisher == nil {
		return
	}
	dispatcher.Subscribe(events.EventTicketCreated, w.handleCreated)
	dispatcher.Subscribe(events.EventTicketEscalated, w.handleEscalated)
	dispatcher.Subscribe(events.EventTicketUpdated, w.handleUpdated)
}

func (w *AlertWorker) handleCreated(ctx context.Context, event events.Event) error {
	snap, ok := event.Payload.(events.TicketSnapshotPayload)
	if !ok || !w.urgent(snap) {
		return nil
	}
	return w.publish(ctx, event.TicketID, "Urgent ticket created", snap)
}

func (w *AlertWorker) handleEscalated(ctx context.Context, event events.Event) error {
	snap, ok := event.Payload.(events.TicketSnapshotPayload)
	if !ok {
		return nil
	}
	return w.publish(ctx, event.TicketID, "Ticket escalated by negative sentiment", snap)
}

// handleUpdated alerts when an open ticket is raised to urgent.
func (w *AlertWorker) handleUpdated(ctx context.Context, event events.Event) error {
	p, ok := event.Payload.(events.TicketUpdatedPayload)
	if !ok || p.Priority != domain.TicketPriorityUrgent || p.OldPriority == domain.TicketPriorityUrgent || p.Status.Terminal() {
		return nil
	}
	return w.publish(ctx, event.TicketID, "Ticket updated with urgent priority", p.TicketSnapshotPayload)
}

func (w *AlertWorker) urgent(snap events.TicketSnapshotPayload) bool {
	return snap.Priority == domain.TicketPriorityUrgent ||
		(w.cfg.UrgencyThreshold > 0 && snap.AIUrgencyScore >= w.cfg.UrgencyThreshold)
}

func (w *AlertWorker) publish(ctx context.Context, ticketID, subject string, snap events.TicketSnapshotPayload) error {
	message := fmt.Sprintf("Ticket %s %q: priority=%s category=%s urgency=%d escalated=%t",
		ticketID, snap.Title, snap.Priority, snap.Category, snap.AIUrgencyScore, snap.Escalated)
	if err := w.publisher.Publish(ctx, w.cfg.Topic, message, subject); err != nil {
		w.logger.Warn("alert publish failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return err
	}
	w.logger.Info("alert published", zap.String("ticket_id", ticketID), zap.String("subject", subject))
	return nil
}
