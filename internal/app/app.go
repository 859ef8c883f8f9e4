// Package app assembles the mail engine and its transports from
// configuration. The server and the CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadsengine/dashboard/internal/config"
	"github.com/leadsengine/dashboard/internal/db"
	"github.com/leadsengine/dashboard/internal/imap"
	"github.com/leadsengine/dashboard/internal/mailbox"
	"github.com/leadsengine/dashboard/internal/outbox"
	"github.com/leadsengine/dashboard/internal/smtp"
	ws "github.com/leadsengine/dashboard/internal/websocket"
	"github.com/sirupsen/logrus"
)

const maxSessionsPerAdmin = 10

// App holds the long-lived components of a process.
type App struct {
	Config  *config.Config
	Pool    *pgxpool.Pool
	Hub     *ws.Hub
	SMTP    *smtp.Client
	Outbox  *outbox.Queue[mailbox.DeliveryJob]
	Mail    *mailbox.Service
	Watcher *imap.Watcher

	logger *logrus.Logger
}

// New wires the components around an open database pool. Transports whose
// credentials are missing are left nil and the service reports them as not
// configured.
func New(cfg *config.Config, pool *pgxpool.Pool, logger *logrus.Logger) *App {
	a := &App{
		Config: cfg,
		Pool:   pool,
		Hub:    ws.NewHub(maxSessionsPerAdmin, logger),
		logger: logger,
	}

	deps := mailbox.Dependencies{
		Store:     db.NewMailStore(pool),
		Users:     db.NewMailStore(pool),
		Publisher: a.Hub,
	}

	if cfg.SMTP.Configured() {
		a.SMTP = smtp.NewClient(SMTPConfig(cfg.SMTP), logger)
		a.Outbox = outbox.New[mailbox.DeliveryJob](outbox.Config{
			Workers:    cfg.OutboxWorkers,
			Capacity:   cfg.OutboxCapacity,
			JobTimeout: cfg.SendTimeout * 2,
		}, logger)
		deps.Sender = smtp.NewSender(a.SMTP)
		deps.Queue = a.Outbox
	}

	if cfg.IMAP.Configured() {
		imapCfg := IMAPConfig(cfg.IMAP)
		deps.Fetcher = imap.NewFetcher(imapCfg, logger)
		if cfg.IMAPWatch {
			a.Watcher = imap.NewWatcher(imapCfg, cfg.IMAPPollInterval, logger)
		}
	}

	a.Mail = mailbox.NewService(mailbox.Config{
		Mailbox:         cfg.IMAP.Username,
		Sender:          cfg.SMTP.Username,
		SenderName:      cfg.BrandName,
		SyncLimit:       cfg.SyncLimit,
		SyncTimeout:     cfg.SyncTimeout,
		DeliveryTimeout: cfg.SendTimeout,
	}, deps, logger)

	return a
}

// SMTPConfig maps the account settings to the client's. Secure means
// implicit TLS; otherwise STARTTLS is used when offered.
func SMTPConfig(m config.MailServer) smtp.Config {
	security := smtp.SecurityStartTLS
	if m.Secure {
		security = smtp.SecurityTLS
	}
	return smtp.Config{
		Address:  m.Address(),
		Username: m.Username,
		Password: m.Password,
		Security: security,
	}
}

// IMAPConfig maps the account settings to the fetcher's.
func IMAPConfig(m config.MailServer) imap.Config {
	return imap.Config{
		Address:  m.Address(),
		Username: m.Username,
		Password: m.Password,
		UseTLS:   m.Secure,
	}
}

// Start launches the delivery workers and, when enabled, the inbox watcher
// with its sync loop. Everything stops when ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	if a.Outbox != nil {
		a.Outbox.Start(ctx, a.Mail.Deliver)
	}

	if a.Watcher != nil {
		go a.Watcher.Run(ctx)
		go a.Mail.RunSyncLoop(ctx, a.Watcher.Signals(), a.Config.IMAPPollInterval)
		a.logger.WithField("mailbox", a.Config.IMAP.Username).Info("App: inbox watcher started")
	}
}

// Close drains the outbox, then closes the SMTP session. Messages still
// queued when the workers never started are marked failed. The database pool
// is owned by the caller.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Outbox != nil {
		dropped, err := a.Outbox.Close(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to drain outbox (%d jobs left): %w", a.Outbox.Len(), err))
		}
		for _, job := range dropped {
			if err := a.Mail.Abandon(ctx, job, outbox.ErrNotStarted); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if a.SMTP != nil {
		if err := a.SMTP.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close smtp session: %w", err))
		}
	}
	return errors.Join(errs...)
}
