// Package app assembles the service graph from configuration.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-pipeline/internal/alert"
	"github.com/spec-kit/ticket-pipeline/internal/audit"
	"github.com/spec-kit/ticket-pipeline/internal/auth"
	"github.com/spec-kit/ticket-pipeline/internal/classifier"
	"github.com/spec-kit/ticket-pipeline/internal/config"
	"github.com/spec-kit/ticket-pipeline/internal/events"
	"github.com/spec-kit/ticket-pipeline/internal/mail"
	"github.com/spec-kit/ticket-pipeline/internal/observability"
	"github.com/spec-kit/ticket-pipeline/internal/persistence"
	"github.com/spec-kit/ticket-pipeline/internal/repository"
	"github.com/spec-kit/ticket-pipeline/internal/service"
	"github.com/spec-kit/ticket-pipeline/internal/textanalysis"
	"github.com/spec-kit/ticket-pipeline/internal/worker"
)

// Pinger reports dependency reachability for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Container holds the wired services.
type Container struct {
	Config        *config.Config
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	Tickets       repository.TicketRepository
	Dispatcher    events.Dispatcher
	Audit         *audit.Logger
	Transport     mail.Transport
	Classifier    *classifier.Engine
	Notifications *service.NotificationService
	TicketService *service.TicketService
	Analytics     *service.AnalyticsService
	Assignment    *service.AssignmentService
	Tokens        *auth.TokenManager
	Dependencies  map[string]Pinger

	closers []func()
}

// Build connects backends and wires every service for cfg.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c := &Container{
		Config:       cfg,
		Logger:       logger,
		Metrics:      observability.NewMetrics(),
		Dispatcher:   events.NewInMemoryDispatcher(),
		Tokens:       auth.NewTokenManager(cfg.Auth.JWTSecret, 0),
		Dependencies: map[string]Pinger{},
	}

	var rdb *persistence.Redis
	if cfg.Store.Backend == config.BackendRedis || cfg.Audit.Backend == config.BackendRedis || cfg.Alerts.Enabled {
		var err error
		rdb, err = persistence.NewRedis(ctx, cfg.Redis, logger)
		c.closers = append(c.closers, rdb.Close)
		c.Dependencies["redis"] = rdb
		if err != nil && cfg.Store.Backend == config.BackendRedis {
			c.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		c.closers = append(c.closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				c.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		c.Tickets = repository.NewPostgresTicketRepository(pg.PoolHandle())
	case config.BackendRedis:
		c.Tickets = repository.NewRedisTicketRepository(rdb)
	default:
		c.Tickets = repository.NewMemoryTicketRepository()
	}
	c.Dependencies["store"] = c.Tickets

	var auditBackend audit.Backend = audit.NewMemoryBackend()
	if cfg.Audit.Backend == config.BackendRedis {
		auditBackend = audit.NewRedisBackend(rdb)
	}
	c.Audit = audit.NewLogger(auditBackend, cfg.Audit.GroupPrefix, cfg.Audit.Source, logger)

	if cfg.Notification.SMTPHost != "" {
		smtp, err := mail.NewSMTPTransport(cfg.Notification, logger)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Transport = smtp
	} else {
		logger.Warn("SMTP_HOST not set, notifications are kept in memory")
		c.Transport = mail.NewMemoryTransport(cfg.Notification.MaxPerDay)
	}
	directory := mail.StaticDirectory{Domain: cfg.Notification.RecipientDomain}
	c.Notifications = service.NewNotificationService(c.Transport, directory, c.Audit, logger, cfg.Notification)

	rules, err := classifier.LoadRuleSet(cfg.Classifier.RulesFile)
	if err != nil {
		c.Close()
		return nil, err
	}
	var analyzer textanalysis.Analyzer = textanalysis.NewLexiconAnalyzer()
	if cfg.Classifier.NLPEndpoint != "" {
		analyzer = textanalysis.NewHTTPAnalyzer(cfg.Classifier.NLPEndpoint, cfg.Classifier.NLPTimeout, logger)
	}
	c.Classifier = classifier.NewEngine(analyzer, rules, cfg.Classifier.Language, logger)

	if cfg.Alerts.Enabled {
		worker.StartAlertWorker(c.Dispatcher, worker.NewAlertWorker(alert.NewRedisPublisher(rdb), cfg.Alerts, logger))
	}

	c.TicketService = service.NewTicketService(service.TicketDependencies{
		TicketRepo: c.Tickets,
		Classifier: c.Classifier,
		Notifier:   c.Notifications,
		Audit:      c.Audit,
		Dispatcher: c.Dispatcher,
		Metrics:    c.Metrics,
		Logger:     logger,
	})
	c.Analytics = service.NewAnalyticsService(c.Tickets, nil)
	c.Assignment = service.NewAssignmentService(service.AssignmentDependencies{
		TicketService: c.TicketService,
		TicketRepo:    c.Tickets,
		Agents:        cfg.Assignment.Agents,
	})
	return c, nil
}

// Close releases backend connections in reverse order.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
