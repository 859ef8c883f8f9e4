package imap

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap/client"
	"github.com/leadsengine/dashboard/internal/mailbox"
	"github.com/sirupsen/logrus"
)

const (
	inbox          = "INBOX"
	commandTimeout = 30 * time.Second
)

// Fetcher opens read-only INBOX sessions for the configured account.
type Fetcher struct {
	cfg    Config
	logger *logrus.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg Config, logger *logrus.Logger) *Fetcher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Fetcher{cfg: cfg, logger: logger}
}

// Open connects, logs in and selects INBOX read-only. The connection is torn
// down if ctx ends before Logout is called.
func (f *Fetcher) Open(ctx context.Context) (mailbox.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := connect(ctx, f.cfg)
	if err != nil {
		return nil, err
	}
	// IDLE sessions run without one; they stay open for minutes.
	c.Timeout = commandTimeout

	stop := context.AfterFunc(ctx, func() {
		_ = c.Terminate()
	})

	status, err := c.Select(inbox, true)
	if err != nil {
		stop()
		_ = c.Logout()
		return nil, fmt.Errorf("failed to select %s: %w", inbox, err)
	}

	f.logger.WithFields(logrus.Fields{
		"server":   f.cfg.Address,
		"messages": status.Messages,
	}).Debug("IMAP: inbox opened")

	return &session{
		client:      c,
		total:       status.Messages,
		uidValidity: status.UidValidity,
		stop:        stop,
	}, nil
}

type session struct {
	client      *client.Client
	total       uint32
	uidValidity uint32
	stop        func() bool
}

func (s *session) FetchRecent(ctx context.Context, limit int) ([]mailbox.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}

	fetched, err := FetchRecent(s.client, s.total, uint32(limit))
	if err != nil {
		return nil, err
	}

	messages := make([]mailbox.RawMessage, 0, len(fetched))
	for _, m := range fetched {
		raw, err := ParseMessage(m, s.uidValidity)
		if err != nil {
			return nil, err
		}
		messages = append(messages, raw)
	}

	return messages, nil
}

func (s *session) Download(ctx context.Context, msg mailbox.RawMessage, part mailbox.Leaf) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r, err := FetchPart(s.client, msg.UID, part.ID)
	if err != nil {
		return "", err
	}

	return DecodePart(r, part)
}

func (s *session) Logout() error {
	// A terminated connection cannot log out; there is nothing left to release.
	if !s.stop() {
		return nil
	}
	if err := s.client.Logout(); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	return nil
}
