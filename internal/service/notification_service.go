package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/ticket-pipeline/internal/audit"
	"github.com/spec-kit/ticket-pipeline/internal/config"
	"github.com/spec-kit/ticket-pipeline/internal/domain"
	"github.com/spec-kit/ticket-pipeline/internal/mail"
)

// NotificationKind selects the email template.
type NotificationKind string

const (
	NotificationCreated   NotificationKind = "created"
	NotificationUpdated   NotificationKind = "updated"
	NotificationCommented NotificationKind = "commented"
	NotificationResolved  NotificationKind = "resolved"
	NotificationAssigned  NotificationKind = "assigned"
)

// AuditLogger is the structured log sink used by services.
type AuditLogger interface {
	Log(ctx context.Context, channel audit.Channel, payload map[string]any, level audit.Level) audit.Result
}

// RecipientFailure records one failed send.
type RecipientFailure struct {
	Recipient string
	Err       error
}

// DeliveryReport summarizes one Notify call. Failures never propagate as errors.
type DeliveryReport struct {
	Kind       NotificationKind
	Recipients []string
	Sent       []string
	Failed     []RecipientFailure
	Skipped    string
}

// OK reports whether every recipient received the message.
func (r DeliveryReport) OK() bool {
	return r.Skipped == "" && len(r.Failed) == 0
}

// NotificationService renders ticket emails and fans them out to recipients.
type NotificationService struct {
	transport mail.Transport
	directory mail.Directory
	audit     AuditLogger
	logger    *zap.Logger
	cfg       config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(transport mail.Transport, directory mail.Directory, auditLog AuditLogger, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &NotificationService{
		transport: transport,
		directory: directory,
		audit:     auditLog,
		logger:    logger.Named("notifications"),
		cfg:       cfg,
	}
}

// Notify emails everyone interested in ticket about kind. comment is
// rendered for NotificationCommented. A non-empty override replaces the
// computed recipient set.
func (n *NotificationService) Notify(ctx context.Context, ticket *domain.Ticket, kind NotificationKind, comment *domain.Comment, override []string) DeliveryReport {
	report := DeliveryReport{Kind: kind}
	if !n.cfg.Enabled || n.transport == nil {
		report.Skipped = "notifications disabled"
		return report
	}

	report.Recipients = n.Recipients(ticket, override)
	if len(report.Recipients) == 0 {
		report.Skipped = "no recipients"
		return report
	}

	subject, body, err := renderNotification(ticket, kind, comment, n.cfg.TicketURLBase)
	if err != nil {
		report.Skipped = "render failed"
		n.logFailure(ctx, ticket, kind, "", err)
		return report
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(n.cfg.Concurrency)
	for _, recipient := range report.Recipients {
		g.Go(func() error {
			sendCtx, cancel := n.sendContext(ctx)
			defer cancel()
			err := n.transport.Send(sendCtx, mail.Message{
				From:     n.cfg.EmailFrom,
				To:       []string{recipient},
				Subject:  subject,
				HTMLBody: body,
				ReplyTo:  n.cfg.ReplyTo,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, RecipientFailure{Recipient: recipient, Err: err})
				return nil
			}
			report.Sent = append(report.Sent, recipient)
			return nil
		})
	}
	_ = g.Wait()

	for _, f := range report.Failed {
		n.logFailure(ctx, ticket, kind, f.Recipient, f.Err)
	}
	if n.audit != nil {
		n.audit.Log(ctx, audit.ChannelNotifications, map[string]any{
			"action":     "notification_sent",
			"ticketId":   ticket.ID,
			"kind":       string(kind),
			"recipients": report.Recipients,
			"sent":       len(report.Sent),
			"failed":     len(report.Failed),
		}, audit.LevelInfo)
	}
	return report
}

func (n *NotificationService) sendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if n.cfg.SendTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, n.cfg.SendTimeout)
}

// Recipients resolves the de-duplicated address list for ticket.
func (n *NotificationService) Recipients(ticket *domain.Ticket, override []string) []string {
	candidates := override
	if len(candidates) == 0 {
		candidates = append(append([]string{}, n.cfg.DefaultRecipients...),
			ticket.AssignedTo, ticket.ReportedBy, ticket.CustomerEmail)
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, identity := range candidates {
		if strings.TrimSpace(identity) == "" {
			continue
		}
		addr, ok := n.lookup(identity)
		if !ok {
			n.logger.Debug("recipient not resolvable", zap.String("identity", identity), zap.String("ticket_id", ticket.ID))
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}

func (n *NotificationService) lookup(identity string) (string, bool) {
	if n.directory == nil {
		if strings.Contains(identity, "@") {
			return strings.ToLower(strings.TrimSpace(identity)), true
		}
		return "", false
	}
	return n.directory.Lookup(identity)
}

func (n *NotificationService) logFailure(ctx context.Context, ticket *domain.Ticket, kind NotificationKind, recipient string, err error) {
	n.logger.Warn("notification failed",
		zap.String("ticket_id", ticket.ID),
		zap.String("kind", string(kind)),
		zap.String("recipient", recipient),
		zap.Error(err))
	if n.audit == nil {
		return
	}
	n.audit.Log(ctx, audit.ChannelErrors, map[string]any{
		"action":    "notification_failed",
		"ticketId":  ticket.ID,
		"kind":      string(kind),
		"recipient": recipient,
		"error":     err.Error(),
	}, audit.LevelError)
}

var subjectFormats = map[NotificationKind]string{
	NotificationCreated:   "New support ticket: %s [#%s]",
	NotificationUpdated:   "Ticket updated: %s [#%s]",
	NotificationCommented: "New comment on ticket: %s [#%s]",
	NotificationResolved:  "Ticket resolved: %s [#%s]",
	NotificationAssigned:  "Ticket assigned: %s [#%s]",
}

var headlines = map[NotificationKind]string{
	NotificationCreated:   "A new support ticket was created",
	NotificationUpdated:   "A support ticket was updated",
	NotificationCommented: "A new comment was added",
	NotificationResolved:  "A support ticket was resolved",
	NotificationAssigned:  "A support ticket was assigned",
}

var notificationTemplate = template.Must(template.New("notification").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
<h2>{{.Headline}}</h2>
<table cellpadding="4">
<tr><td><strong>Ticket</strong></td><td>#{{.Ticket.ID}}</td></tr>
<tr><td><strong>Title</strong></td><td>{{.Ticket.Title}}</td></tr>
<tr><td><strong>Status</strong></td><td>{{.Ticket.Status}}</td></tr>
<tr><td><strong>Priority</strong></td><td>{{.Ticket.Priority}}</td></tr>
<tr><td><strong>Category</strong></td><td>{{.Ticket.Category}}</td></tr>
{{- if .Ticket.AssignedTo}}
<tr><td><strong>Assigned to</strong></td><td>{{.Ticket.AssignedTo}}</td></tr>
{{- end}}
</table>
<h3>Description</h3>
<p>{{.Ticket.Description}}</p>
{{- if .Comment}}
<h3>Comment from {{.Comment.Author}} ({{.CommentTime}})</h3>
<blockquote>{{.Comment.Content}}</blockquote>
{{- end}}
{{- if .Link}}
<p><a href="{{.Link}}">Open ticket</a></p>
{{- end}}
</body>
</html>
`))

type notificationView struct {
	Headline    string
	Ticket      *domain.Ticket
	Comment     *domain.Comment
	CommentTime string
	Link        string
}

func renderNotification(ticket *domain.Ticket, kind NotificationKind, comment *domain.Comment, urlBase string) (string, string, error) {
	format, ok := subjectFormats[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown notification kind %q", kind)
	}
	view := notificationView{Headline: headlines[kind], Ticket: ticket}
	if kind == NotificationCommented && comment != nil {
		view.Comment = comment
		view.CommentTime = comment.Timestamp.UTC().Format(time.RFC1123)
	}
	if urlBase != "" {
		view.Link = strings.TrimRight(urlBase, "/") + "/" + ticket.ID
	}

	var buf bytes.Buffer
	if err := notificationTemplate.Execute(&buf, view); err != nil {
		return "", "", fmt.Errorf("render %s notification: %w", kind, err)
	}
	return fmt.Sprintf(format, ticket.Title, ticket.ID), buf.String(), nil
}
