package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-pipeline/internal/audit"
	"github.com/spec-kit/ticket-pipeline/internal/classifier"
	"github.com/spec-kit/ticket-pipeline/internal/domain"
	"github.com/spec-kit/ticket-pipeline/internal/events"
	"github.com/spec-kit/ticket-pipeline/internal/observability"
	"github.com/spec-kit/ticket-pipeline/internal/repository"
	"github.com/spec-kit/ticket-pipeline/pkg/util/errorutil"
)

// Classifier enriches new tickets. It must not fail the caller.
type Classifier interface {
	Classify(ctx context.Context, title, description string) classifier.Result
}

// Notifier sends ticket emails.
type Notifier interface {
	Notify(ctx context.Context, ticket *domain.Ticket, kind NotificationKind, comment *domain.Comment, override []string) DeliveryReport
}

// priorityOverrideConfidence is the confidence above which a non-default
// suggested priority replaces the requested one.
const priorityOverrideConfidence = 0.7

// Side effects reported on every mutation.
const (
	EffectClassification = "classification"
	EffectAudit          = "audit"
	EffectNotification   = "notification"
	EffectEvents         = "events"
)

// EffectStatus is the outcome of one side effect.
type EffectStatus string

const (
	EffectOK       EffectStatus = "ok"
	EffectDegraded EffectStatus = "degraded"
	EffectSkipped  EffectStatus = "skipped"
	EffectFailed   EffectStatus = "failed"
)

// EffectReport describes one best-effort side effect of a mutation.
type EffectReport struct {
	Effect string
	Status EffectStatus
	Detail string
	Err    error
}

// MutationResult is the persisted ticket plus the outcome of each side effect.
type MutationResult struct {
	Ticket  *domain.Ticket
	Effects []EffectReport
}

// Effect returns the report for name, if present.
func (r *MutationResult) Effect(name string) (EffectReport, bool) {
	for _, e := range r.Effects {
		if e.Effect == name {
			return e, true
		}
	}
	return EffectReport{}, false
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	classifier Classifier
	notifier   Notifier
	audit      AuditLogger
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Classifier Classifier
	Notifier   Notifier
	Audit      AuditLogger
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title         string
	Description   string
	Priority      domain.TicketPriority
	Category      domain.TicketCategory
	AssignedTo    string
	ReportedBy    string
	CustomerEmail string
	CustomerName  string
	Tags          []string
}

// TicketUpdateInput holds the fields to merge. Nil fields are left untouched;
// Tags are added to the existing set. A non-zero ExpectedVersion must match
// the stored version.
type TicketUpdateInput struct {
	Title           *string
	Description     *string
	Status          *domain.TicketStatus
	Priority        *domain.TicketPriority
	Category        *domain.TicketCategory
	AssignedTo      *string
	Tags            []string
	ExpectedVersion int64
	Actor           events.Actor
}

// CommentInput describes a new comment.
type CommentInput struct {
	Author      string
	AuthorType  domain.AuthorType
	Content     string
	IsInternal  bool
	Attachments []string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		classifier: deps.Classifier,
		notifier:   deps.Notifier,
		audit:      deps.Audit,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger.Named("tickets"),
		tracer:     otel.Tracer("ticket-pipeline/service"),
		now:        clock,
	}
}

// CreateTicket classifies, persists and announces a new ticket.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*MutationResult, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.CreateTicket")
	defer span.End()

	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" || description == "" {
		return nil, errorutil.NewValidationError("title and description are required", nil)
	}
	if input.Priority != "" && !input.Priority.Valid() {
		return nil, errorutil.NewValidationError("invalid priority", map[string]any{"priority": input.Priority})
	}
	if input.Category != "" && !input.Category.Valid() {
		return nil, errorutil.NewValidationError("invalid category", map[string]any{"category": input.Category})
	}

	now := s.now().UTC()
	ticket := &domain.Ticket{
		ID:            uuid.NewString(),
		Title:         title,
		Description:   description,
		Status:        domain.TicketStatusOpen,
		Priority:      input.Priority,
		Category:      input.Category,
		AssignedTo:    strings.TrimSpace(input.AssignedTo),
		ReportedBy:    strings.TrimSpace(input.ReportedBy),
		CustomerEmail: strings.TrimSpace(input.CustomerEmail),
		CustomerName:  strings.TrimSpace(input.CustomerName),
		CreatedAt:     now,
		UpdatedAt:     now,
		Tags:          []string{},
		AIKeyPhrases:  []string{},
		Comments:      []domain.Comment{},
		Version:       1,
	}
	ticket.AddTags(input.Tags...)
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}

	result := &MutationResult{Ticket: ticket}
	result.Effects = append(result.Effects, s.classify(ctx, ticket, input.Category == "" || input.Category == domain.TicketCategoryOther))
	ticket.SLATarget = ticket.Priority.SLATargetHours()
	ticket.Comments = append(ticket.Comments, domain.Comment{
		ID:         uuid.NewString(),
		Author:     "system",
		AuthorType: domain.AuthorTypeSystem,
		Content:    fmt.Sprintf("Ticket created with status %s and priority %s", ticket.Status, ticket.Priority),
		Timestamp:  now,
	})
	span.SetAttributes(
		attribute.String("ticket.id", ticket.ID),
		attribute.String("ticket.priority", string(ticket.Priority)),
		attribute.String("ticket.category", string(ticket.Category)),
	)

	if err := s.tickets.Put(ctx, ticket); err != nil {
		return nil, s.storeError(ctx, span, "create", ticket.ID, err)
	}

	result.Effects = append(result.Effects, s.log(ctx, audit.ChannelTickets, ticketPayload(audit.ActionTicketCreated, ticket), audit.LevelInfo))
	result.Effects = append(result.Effects, s.notify(ctx, ticket, NotificationCreated, nil))
	evs := []events.Event{{Type: events.EventTicketCreated, TicketID: ticket.ID, Actor: reporterActor(ticket), Payload: events.Snapshot(ticket)}}
	if ticket.Escalated {
		evs = append(evs, events.Event{Type: events.EventTicketEscalated, TicketID: ticket.ID, Actor: aiActor(), Payload: events.Snapshot(ticket)})
	}
	result.Effects = append(result.Effects, s.publish(ctx, evs...))

	s.record(result)
	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("priority", string(ticket.Priority)),
		zap.String("category", string(ticket.Category)),
		zap.Int("urgency", ticket.AIUrgencyScore))
	return result, nil
}

// classify folds the engine's output into ticket.
func (s *TicketService) classify(ctx context.Context, ticket *domain.Ticket, adoptCategory bool) EffectReport {
	report := EffectReport{Effect: EffectClassification, Status: EffectOK}
	if s.classifier == nil {
		if adoptCategory && ticket.Category == "" {
			ticket.Category = domain.TicketCategoryOther
		}
		report.Status = EffectSkipped
		report.Detail = "no classifier configured"
		return report
	}

	res := s.classifier.Classify(ctx, ticket.Title, ticket.Description)
	c := res.Classification
	ticket.AIClassified = res.Status == classifier.StatusOK
	ticket.AISentiment = c.Sentiment
	ticket.AIConfidence = domain.ClampConfidence(c.Confidence)
	ticket.AIKeyPhrases = append([]string{}, c.KeyPhrases...)
	ticket.AIUrgencyScore = classifier.UrgencyScore(c)
	ticket.Escalated = c.Escalated
	if ticket.AIConfidence > priorityOverrideConfidence && c.Priority != domain.TicketPriorityMedium {
		ticket.Priority = c.Priority
	}
	if adoptCategory {
		ticket.Category = c.Category
	}

	if res.Status != classifier.StatusOK {
		report.Status = EffectDegraded
		report.Detail = "classification fell back to defaults"
		report.Err = res.Err
	}
	return report
}

// GetTicket loads one ticket.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.Get(ctx, id)
	if err != nil {
		return nil, s.storeError(ctx, nil, "get", id, err)
	}
	return ticket, nil
}

// ListTickets returns tickets matching every set filter, newest first.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketQuery) ([]domain.Ticket, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.ListTickets")
	defer span.End()

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, errorutil.NewValidationError("invalid status filter", map[string]any{"status": filter.Status})
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		return nil, errorutil.NewValidationError("invalid priority filter", map[string]any{"priority": filter.Priority})
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, errorutil.NewValidationError("invalid category filter", map[string]any{"category": filter.Category})
	}
	tickets, err := s.tickets.Query(ctx, filter)
	if err != nil {
		return nil, s.storeError(ctx, span, "list", "", err)
	}
	return tickets, nil
}

// UpdateTicket merges input into the stored ticket.
func (s *TicketService) UpdateTicket(ctx context.Context, id string, input TicketUpdateInput) (*MutationResult, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.UpdateTicket", trace.WithAttributes(attribute.String("ticket.id", id)))
	defer span.End()

	ticket, err := s.tickets.Get(ctx, id)
	if err != nil {
		return nil, s.storeError(ctx, span, "update", id, err)
	}
	if input.ExpectedVersion != 0 && input.ExpectedVersion != ticket.Version {
		return nil, errorutil.NewConflict("ticket was modified concurrently", map[string]any{
			"id": id, "expectedVersion": input.ExpectedVersion, "currentVersion": ticket.Version,
		})
	}
	before := ticket.Clone()

	if err := applyUpdate(ticket, input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	ticket.UpdatedAt = now
	resolvedNow := false
	if ticket.Status.Terminal() && ticket.ResolvedAt == nil {
		ticket.ResolvedAt = &now
		resolvedNow = true
	}
	if ticket.Priority != before.Priority {
		ticket.SLATarget = ticket.Priority.SLATargetHours()
	}
	ticket.Version++

	if err := s.tickets.Put(ctx, ticket); err != nil {
		return nil, s.storeError(ctx, span, "update", id, err)
	}

	result := &MutationResult{Ticket: ticket}
	payload := ticketPayload("ticket_updated", ticket)
	payload["changes"] = changedFields(before, ticket)
	var resolutionHours float64
	if resolvedNow {
		resolutionHours = ticket.ResolvedAt.Sub(ticket.CreatedAt).Hours()
		payload["resolutionHours"] = resolutionHours
	}
	result.Effects = append(result.Effects, s.log(ctx, audit.ChannelTickets, payload, audit.LevelInfo))
	if resolvedNow {
		resolved := ticketPayload(audit.ActionTicketResolved, ticket)
		resolved["resolutionHours"] = resolutionHours
		result.Effects = append(result.Effects, s.log(ctx, audit.ChannelTickets, resolved, audit.LevelInfo))
	}

	statusChanged := ticket.Status != before.Status
	assigneeChanged := ticket.AssignedTo != before.AssignedTo
	if statusChanged || assigneeChanged {
		kind := NotificationUpdated
		switch {
		case statusChanged && ticket.Status.Terminal():
			kind = NotificationResolved
		case assigneeChanged:
			kind = NotificationAssigned
		}
		result.Effects = append(result.Effects, s.notify(ctx, ticket, kind, nil))
	} else {
		result.Effects = append(result.Effects, EffectReport{Effect: EffectNotification, Status: EffectSkipped, Detail: "status and assignee unchanged"})
	}

	evs := []events.Event{{
		Type: events.EventTicketUpdated, TicketID: id, Actor: input.Actor,
		Payload: events.TicketUpdatedPayload{TicketSnapshotPayload: events.Snapshot(ticket), OldStatus: before.Status, OldPriority: before.Priority, OldAssignedTo: before.AssignedTo},
	}}
	if resolvedNow {
		evs = append(evs, events.Event{
			Type: events.EventTicketResolved, TicketID: id, Actor: input.Actor,
			Payload: events.TicketResolvedPayload{TicketSnapshotPayload: events.Snapshot(ticket), ResolutionHours: resolutionHours},
		})
	}
	result.Effects = append(result.Effects, s.publish(ctx, evs...))

	s.record(result)
	return result, nil
}

func applyUpdate(ticket *domain.Ticket, input TicketUpdateInput) error {
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return errorutil.NewValidationError("title must not be empty", nil)
		}
		ticket.Title = title
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return errorutil.NewValidationError("description must not be empty", nil)
		}
		ticket.Description = description
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return errorutil.NewValidationError("invalid status", map[string]any{"status": *input.Status})
		}
		ticket.Status = *input.Status
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return errorutil.NewValidationError("invalid priority", map[string]any{"priority": *input.Priority})
		}
		ticket.Priority = *input.Priority
	}
	if input.Category != nil {
		if !input.Category.Valid() {
			return errorutil.NewValidationError("invalid category", map[string]any{"category": *input.Category})
		}
		ticket.Category = *input.Category
	}
	if input.AssignedTo != nil {
		ticket.AssignedTo = strings.TrimSpace(*input.AssignedTo)
	}
	ticket.AddTags(input.Tags...)
	return nil
}

// AddComment appends a comment and notifies interested parties unless the
// comment is internal.
func (s *TicketService) AddComment(ctx context.Context, id string, input CommentInput) (*MutationResult, error) {
	ctx, span := s.tracer.Start(ctx, "TicketService.AddComment", trace.WithAttributes(attribute.String("ticket.id", id)))
	defer span.End()

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, errorutil.NewValidationError("comment content is required", nil)
	}
	if input.AuthorType == "" {
		input.AuthorType = domain.AuthorTypeCustomer
	}
	if !input.AuthorType.Valid() {
		return nil, errorutil.NewValidationError("invalid author type", map[string]any{"authorType": input.AuthorType})
	}

	ticket, err := s.tickets.Get(ctx, id)
	if err != nil {
		return nil, s.storeError(ctx, span, "comment", id, err)
	}

	now := s.now().UTC()
	comment := domain.Comment{
		ID:          uuid.NewString(),
		Author:      strings.TrimSpace(input.Author),
		AuthorType:  input.AuthorType,
		Content:     content,
		Timestamp:   now,
		IsInternal:  input.IsInternal,
		Attachments: append([]string{}, input.Attachments...),
	}
	ticket.Comments = append(ticket.Comments, comment)
	if comment.AuthorType == domain.AuthorTypeAdmin && ticket.FirstResponseAt == nil {
		ticket.FirstResponseAt = &now
	}
	ticket.UpdatedAt = now
	ticket.Version++

	if err := s.tickets.Put(ctx, ticket); err != nil {
		return nil, s.storeError(ctx, span, "comment", id, err)
	}

	result := &MutationResult{Ticket: ticket}
	payload := ticketPayload("ticket_commented", ticket)
	payload["commentId"] = comment.ID
	payload["authorType"] = string(comment.AuthorType)
	payload["isInternal"] = comment.IsInternal
	result.Effects = append(result.Effects, s.log(ctx, audit.ChannelTickets, payload, audit.LevelInfo))

	if comment.IsInternal {
		result.Effects = append(result.Effects, EffectReport{Effect: EffectNotification, Status: EffectSkipped, Detail: "internal comment"})
	} else {
		result.Effects = append(result.Effects, s.notify(ctx, ticket, NotificationCommented, &comment))
	}

	result.Effects = append(result.Effects, s.publish(ctx, events.Event{
		Type: events.EventTicketCommented, TicketID: id,
		Actor: events.Actor{Type: comment.AuthorType, Name: comment.Author},
		Payload: events.TicketCommentedPayload{
			CommentID:   comment.ID,
			AuthorType:  comment.AuthorType,
			IsInternal:  comment.IsInternal,
			BodyPreview: stringPreview(comment.Content, 140),
		},
	}))

	s.record(result)
	return result, nil
}

// SoftDelete closes the ticket and tags it deleted. The record stays readable.
func (s *TicketService) SoftDelete(ctx context.Context, id string, actor events.Actor) (bool, error) {
	closed := domain.TicketStatusClosed
	result, err := s.UpdateTicket(ctx, id, TicketUpdateInput{
		Status: &closed,
		Tags:   []string{domain.TagDeleted},
		Actor:  actor,
	})
	if err != nil {
		return false, err
	}
	return result.Ticket.Status == domain.TicketStatusClosed && result.Ticket.HasTag(domain.TagDeleted), nil
}

func (s *TicketService) log(ctx context.Context, channel audit.Channel, payload map[string]any, level audit.Level) EffectReport {
	report := EffectReport{Effect: EffectAudit, Status: EffectOK, Detail: fmt.Sprint(payload["action"])}
	if s.audit == nil {
		report.Status = EffectSkipped
		return report
	}
	res := s.audit.Log(ctx, channel, payload, level)
	if res.FellBack {
		report.Status = EffectDegraded
		report.Err = res.Err
	}
	return report
}

func (s *TicketService) notify(ctx context.Context, ticket *domain.Ticket, kind NotificationKind, comment *domain.Comment) EffectReport {
	report := EffectReport{Effect: EffectNotification, Status: EffectOK, Detail: string(kind)}
	if s.notifier == nil {
		report.Status = EffectSkipped
		return report
	}
	delivery := s.notifier.Notify(ctx, ticket, kind, comment, nil)
	switch {
	case delivery.Skipped != "":
		report.Status = EffectSkipped
		report.Detail = delivery.Skipped
	case len(delivery.Failed) > 0 && len(delivery.Sent) == 0:
		report.Status = EffectFailed
		report.Err = delivery.Failed[0].Err
	case len(delivery.Failed) > 0:
		report.Status = EffectDegraded
		report.Err = delivery.Failed[0].Err
	}
	return report
}

func (s *TicketService) publish(ctx context.Context, evs ...events.Event) EffectReport {
	report := EffectReport{Effect: EffectEvents, Status: EffectOK}
	if s.dispatcher == nil {
		report.Status = EffectSkipped
		return report
	}
	var errs []error
	for _, event := range evs {
		if event.ID == "" {
			event.ID = uuid.NewString()
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = s.now().UTC()
		}
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		report.Status = EffectDegraded
		report.Err = err
		s.logger.Warn("event handlers failed", zap.Error(err))
	}
	return report
}

func (s *TicketService) record(result *MutationResult) {
	for _, e := range result.Effects {
		s.metrics.RecordEffect(e.Effect, string(e.Status))
	}
}

// storeError maps repository errors onto the caller-facing taxonomy. Backend
// failures are also written to the errors channel.
func (s *TicketService) storeError(ctx context.Context, span trace.Span, op, id string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return errorutil.NewNotFound("ticket", map[string]any{"id": id})
	case errors.Is(err, repository.ErrVersionConflict):
		return errorutil.NewConflict("ticket was modified concurrently", map[string]any{"id": id})
	}
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failure")
	}
	s.logger.Error("ticket store failure", zap.String("op", op), zap.String("ticket_id", id), zap.Error(err))
	if s.audit != nil {
		s.audit.Log(ctx, audit.ChannelErrors, map[string]any{
			"action":   "persistence_failure",
			"op":       op,
			"ticketId": id,
			"error":    err.Error(),
		}, audit.LevelError)
	}
	return errorutil.NewPersistenceFailure(err)
}

func ticketPayload(action string, t *domain.Ticket) map[string]any {
	return map[string]any{
		"action":         action,
		"ticketId":       t.ID,
		"status":         string(t.Status),
		"priority":       string(t.Priority),
		"category":       string(t.Category),
		"assignedTo":     t.AssignedTo,
		"aiUrgencyScore": t.AIUrgencyScore,
		"escalated":      t.Escalated,
		"version":        t.Version,
	}
}

func changedFields(before, after *domain.Ticket) []string {
	var changed []string
	if before.Title != after.Title {
		changed = append(changed, "title")
	}
	if before.Description != after.Description {
		changed = append(changed, "description")
	}
	if before.Status != after.Status {
		changed = append(changed, "status")
	}
	if before.Priority != after.Priority {
		changed = append(changed, "priority")
	}
	if before.Category != after.Category {
		changed = append(changed, "category")
	}
	if before.AssignedTo != after.AssignedTo {
		changed = append(changed, "assignedTo")
	}
	if len(before.Tags) != len(after.Tags) {
		changed = append(changed, "tags")
	}
	return changed
}

func reporterActor(t *domain.Ticket) events.Actor {
	return events.Actor{Type: domain.AuthorTypeCustomer, Name: t.ReportedBy}
}

func aiActor() events.Actor {
	return events.Actor{Type: domain.AuthorTypeAI, Name: "classifier"}
}

func stringPreview(body string, max int) string {
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	return string(runes[:max]) + "…"
}
