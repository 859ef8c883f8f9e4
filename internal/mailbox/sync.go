package mailbox

import (
	"context"
	"fmt"
	"time"

	"github.com/leadsengine/dashboard/internal/models"
	"github.com/sirupsen/logrus"
)

// SyncResult summarizes one inbox sync.
type SyncResult struct {
	Fetched  int `json:"fetched"`
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// SyncInbox pulls the newest messages from the remote inbox and stores the
// ones not seen before. Messages stored before a failure are kept.
func (s *Service) SyncInbox(ctx context.Context) (SyncResult, error) {
	var result SyncResult
	if s.fetcher == nil {
		return result, ErrTransportNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.SyncTimeout)
	defer cancel()

	session, err := s.fetcher.Open(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to open mailbox: %w", err)
	}
	defer func() {
		if err := session.Logout(); err != nil {
			s.logger.WithError(err).Warn("Mailbox: failed to log out")
		}
	}()

	messages, err := session.FetchRecent(ctx, s.cfg.SyncLimit)
	if err != nil {
		return result, fmt.Errorf("failed to fetch messages: %w", err)
	}
	result.Fetched = len(messages)

	for _, raw := range messages {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("sync interrupted: %w", err)
		}

		if raw.ExternalID != "" {
			exists, err := s.store.MessageExists(ctx, raw.ExternalID)
			if err != nil {
				return result, fmt.Errorf("failed to check message %s: %w", raw.ExternalID, err)
			}
			if exists {
				result.Skipped++
				continue
			}
		}

		msg := s.inboundMessage(ctx, session, raw)
		inserted, err := s.store.InsertMessage(ctx, msg)
		if err != nil {
			return result, fmt.Errorf("failed to store message %s: %w", raw.ExternalID, err)
		}
		if inserted {
			result.Inserted++
		} else {
			result.Skipped++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"fetched":  result.Fetched,
		"inserted": result.Inserted,
		"skipped":  result.Skipped,
	}).Info("Mailbox: inbox synced")

	s.publish(Event{Type: EventInboxSynced, Fetched: result.Fetched, Inserted: result.Inserted})

	return result, nil
}

func (s *Service) inboundMessage(ctx context.Context, session Session, raw RawMessage) *models.Message {
	date := raw.Date
	if date.IsZero() {
		date = time.Now()
	}

	return &models.Message{
		FromAddress: NormalizeAddress(raw.From),
		ToAddresses: raw.To,
		CCAddresses: raw.CC,
		Subject:     raw.Subject,
		Body:        s.plainBody(ctx, session, raw),
		SentAt:      date,
		Direction:   DirectionOf(s.cfg.Mailbox, raw.From),
		Contact:     DeriveContact(s.cfg.Mailbox, raw.From, raw.To),
		ExternalID:  raw.ExternalID,
	}
}

// plainBody downloads the first text/plain part. Failures leave the body empty.
func (s *Service) plainBody(ctx context.Context, session Session, raw RawMessage) string {
	leaf, ok := FindPlainText(raw.Structure)
	if !ok {
		return ""
	}

	body, err := session.Download(ctx, raw, leaf)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"uid":  raw.UID,
			"part": leaf.ID,
		}).Warn("Mailbox: failed to download body part")
		return ""
	}

	return body
}
