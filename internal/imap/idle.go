package imap

import (
	"context"
	"fmt"
	"time"

	idle "github.com/emersion/go-imap-idle"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"
)

const (
	// idleRetryDelay is the backoff after a failed or dropped IDLE session.
	idleRetryDelay = 10 * time.Second
	// defaultPollInterval is used when the server has no IDLE capability.
	defaultPollInterval = 30 * time.Second
)

// Watcher keeps an IDLE session open on INBOX and signals when new mail
// arrives.
type Watcher struct {
	cfg          Config
	logger       *logrus.Logger
	pollInterval time.Duration
	retryDelay   time.Duration
	signals      chan struct{}
}

// NewWatcher creates a Watcher. pollInterval is the NOOP polling cadence
// used against servers without IDLE.
func NewWatcher(cfg Config, pollInterval time.Duration, logger *logrus.Logger) *Watcher {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Watcher{
		cfg:          cfg,
		logger:       logger,
		pollInterval: pollInterval,
		retryDelay:   idleRetryDelay,
		signals:      make(chan struct{}, 1),
	}
}

// Signals fires once per batch of INBOX changes. Pending signals coalesce.
func (w *Watcher) Signals() <-chan struct{} {
	return w.signals
}

// Run reconnects and idles until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	for {
		if err := w.watch(ctx); err != nil && ctx.Err() == nil {
			w.logger.WithError(err).Warn("IMAP IDLE: session ended")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.retryDelay):
		}
	}
}

func (w *Watcher) watch(ctx context.Context) error {
	c, err := connect(ctx, w.cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Logout()
	}()

	status, err := c.Select(inbox, true)
	if err != nil {
		return fmt.Errorf("failed to select %s: %w", inbox, err)
	}
	known := status.Messages

	updates := make(chan imapclient.Update, 10)
	c.Updates = updates

	idleClient := idle.NewClient(c)
	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- idleClient.IdleWithFallback(stop, w.pollInterval)
	}()

	w.logger.WithField("messages", known).Debug("IMAP IDLE: watching inbox")

	for {
		select {
		case <-ctx.Done():
			close(stop)
			drainUntilDone(updates, done)
			return nil
		case err := <-done:
			if err != nil {
				return fmt.Errorf("idle failed: %w", err)
			}
			return nil
		case update := <-updates:
			mbox, ok := update.(*imapclient.MailboxUpdate)
			if !ok || mbox.Mailbox == nil || mbox.Mailbox.Name != inbox {
				continue
			}
			count := mbox.Mailbox.Messages
			if count > known {
				w.signal()
			}
			known = count
		}
	}
}

// drainUntilDone discards updates until the idle goroutine returns. The
// client blocks on a full updates channel, so it must keep being read.
func drainUntilDone(updates <-chan imapclient.Update, done <-chan error) {
	for {
		select {
		case <-done:
			return
		case <-updates:
		}
	}
}

func (w *Watcher) signal() {
	select {
	case w.signals <- struct{}{}:
	default:
	}
}
