package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadsengine/dashboard/internal/models"
)

// MailStore exposes the message, thread and user queries as the mailbox
// service's store and user directory. Missing rows are reported as nil, nil.
type MailStore struct {
	pool *pgxpool.Pool
}

// NewMailStore creates a MailStore backed by pool.
func NewMailStore(pool *pgxpool.Pool) *MailStore {
	return &MailStore{pool: pool}
}

func (s *MailStore) MessageExists(ctx context.Context, externalID string) (bool, error) {
	return MessageExists(ctx, s.pool, externalID)
}

func (s *MailStore) InsertMessage(ctx context.Context, msg *models.Message) (bool, error) {
	return InsertMessage(ctx, s.pool, msg)
}

func (s *MailStore) UpdateMessageStatus(ctx context.Context, id string, update models.StatusUpdate) error {
	return UpdateMessageStatus(ctx, s.pool, id, update)
}

func (s *MailStore) MessagesByContact(ctx context.Context, contact, subject string) ([]*models.Message, error) {
	return ListMessagesByContact(ctx, s.pool, contact, subject)
}

func (s *MailStore) LatestPerContact(ctx context.Context) ([]models.ContactActivity, error) {
	return LastMessagePerContact(ctx, s.pool)
}

func (s *MailStore) Thread(ctx context.Context, contact string) (*models.Thread, error) {
	thread, err := GetThreadByContact(ctx, s.pool, contact)
	if errors.Is(err, ErrThreadNotFound) {
		return nil, nil
	}
	return thread, err
}

func (s *MailStore) UpsertThread(ctx context.Context, contact, subject string) (*models.Thread, error) {
	return UpsertThread(ctx, s.pool, contact, subject)
}

func (s *MailStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	return ListUsers(ctx, s.pool)
}

func (s *MailStore) UsersByEmails(ctx context.Context, emails []string) ([]*models.User, error) {
	return GetUsersByEmails(ctx, s.pool, emails)
}
