package mail

import (
	"context"
	"errors"
	"fmt"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spec-kit/ticket-pipeline/internal/config"
)

// SMTPTransport delivers messages through an SMTP relay.
type SMTPTransport struct {
	client  *gomail.Client
	limiter *rate.Limiter
	ledger  *ledger
	logger  *zap.Logger
}

// NewSMTPTransport builds a transport for the configured relay.
func NewSMTPTransport(cfg config.NotificationConfig, logger *zap.Logger) (*SMTPTransport, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(cfg.SendTimeout),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.SMTPUsername),
			gomail.WithPassword(cfg.SMTPPassword),
		)
	}
	client, err := gomail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	limit := rate.Inf
	if cfg.SendRatePerSecond > 0 {
		limit = rate.Limit(cfg.SendRatePerSecond)
	}
	return &SMTPTransport{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		ledger:  newLedger(cfg.MaxPerDay, cfg.SendRatePerSecond),
		logger:  logger.Named("smtp"),
	}, nil
}

// Send implements Transport.
func (t *SMTPTransport) Send(ctx context.Context, msg Message) error {
	if err := t.ledger.reserve(); err != nil {
		return err
	}
	m, err := buildMessage(msg)
	if err != nil {
		t.ledger.record(outcomeRejected)
		return err
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send rate: %w", err)
	}
	if err := t.client.DialAndSendWithContext(ctx, m); err != nil {
		var sendErr *gomail.SendError
		if errors.As(err, &sendErr) {
			t.ledger.record(outcomeBounced)
		} else {
			t.ledger.record(outcomeRejected)
		}
		return fmt.Errorf("smtp send to %v: %w", msg.To, err)
	}
	t.ledger.record(outcomeDelivered)
	return nil
}

// Quota implements Transport.
func (t *SMTPTransport) Quota(context.Context) (Quota, error) {
	return t.ledger.quota(), nil
}

// Stats implements Transport. SMTP has no complaint feedback loop, so
// Complaints is always zero.
func (t *SMTPTransport) Stats(context.Context) ([]StatPoint, error) {
	return t.ledger.stats(), nil
}

func buildMessage(msg Message) (*gomail.Msg, error) {
	m := gomail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return nil, fmt.Errorf("from %q: %w", msg.From, err)
	}
	if err := m.To(msg.To...); err != nil {
		return nil, fmt.Errorf("to %v: %w", msg.To, err)
	}
	for _, r := range msg.ReplyTo {
		if err := m.ReplyTo(r); err != nil {
			return nil, fmt.Errorf("reply-to %q: %w", r, err)
		}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextHTML, msg.HTMLBody)
	return m, nil
}
