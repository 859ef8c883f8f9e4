package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadsengine/dashboard/internal/models"
)

// ErrMessageNotFound is returned when a requested message cannot be found.
var ErrMessageNotFound = errors.New("message not found")

const uniqueViolation = "23505"

const messageColumns = `
	id,
	from_address,
	to_addresses,
	cc_addresses,
	bcc_addresses,
	subject,
	body,
	sent_at,
	direction,
	contact_email,
	external_id,
	status,
	error,
	created_at`

// InsertMessage stores a new message. When a message with the same non-empty
// external id already exists the insert is skipped and false is returned.
func InsertMessage(ctx context.Context, pool *pgxpool.Pool, message *models.Message) (bool, error) {
	if message.SentAt.IsZero() {
		message.SentAt = time.Now()
	}

	err := pool.QueryRow(ctx, `
		INSERT INTO mail_messages (
			from_address,
			to_addresses,
			cc_addresses,
			bcc_addresses,
			subject,
			body,
			sent_at,
			direction,
			contact_email,
			external_id,
			status,
			error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (external_id) WHERE external_id <> '' DO NOTHING
		RETURNING id, created_at
	`,
		message.FromAddress,
		nonNil(message.ToAddresses),
		nonNil(message.CCAddresses),
		nonNil(message.BCCAddresses),
		message.Subject,
		message.Body,
		message.SentAt,
		string(message.Direction),
		message.Contact,
		message.ExternalID,
		string(message.Status),
		message.Error,
	).Scan(&message.ID, &message.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert message: %w", err)
	}

	return true, nil
}

// UpdateMessageStatus records the outcome of a delivery attempt. A non-empty
// external id replaces the stored one; an empty one leaves it untouched.
func UpdateMessageStatus(ctx context.Context, pool *pgxpool.Pool, id string, update models.StatusUpdate) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrMessageNotFound
	}

	tag, err := updateStatus(ctx, pool, id, update)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && update.ExternalID != "" {
		// The id is already held by a synced copy of the same message.
		update.ExternalID = ""
		tag, err = updateStatus(ctx, pool, id, update)
	}
	if err != nil {
		return fmt.Errorf("failed to update message status: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}

	return nil
}

func updateStatus(ctx context.Context, pool *pgxpool.Pool, id string, update models.StatusUpdate) (pgconn.CommandTag, error) {
	return pool.Exec(ctx, `
		UPDATE mail_messages
		SET status = $2,
			external_id = COALESCE(NULLIF($3, ''), external_id),
			error = $4,
			updated_at = now()
		WHERE id = $1
	`, id, string(update.Status), update.ExternalID, update.Error)
}

// GetMessageByID returns a message by its id.
func GetMessageByID(ctx context.Context, pool *pgxpool.Pool, id string) (*models.Message, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrMessageNotFound
	}

	row := pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM mail_messages WHERE id = $1`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return msg, nil
}

// GetMessageByExternalID returns the message carrying the given transport id.
func GetMessageByExternalID(ctx context.Context, pool *pgxpool.Pool, externalID string) (*models.Message, error) {
	if externalID == "" {
		return nil, ErrMessageNotFound
	}

	row := pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM mail_messages WHERE external_id = $1`, externalID)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message by external id: %w", err)
	}

	return msg, nil
}

// ListMessagesByContact returns a contact's messages oldest first, optionally
// restricted to one exact subject.
func ListMessagesByContact(ctx context.Context, pool *pgxpool.Pool, contact, subject string) ([]*models.Message, error) {
	rows, err := pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM mail_messages
		WHERE contact_email = lower(trim($1))
		  AND ($2 = '' OR subject = $2)
		ORDER BY sent_at, created_at
	`, contact, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}

// LastMessagePerContact returns the newest message of every contact, most
// recent contact first.
func LastMessagePerContact(ctx context.Context, pool *pgxpool.Pool) ([]models.ContactActivity, error) {
	rows, err := pool.Query(ctx, `
		SELECT contact_email, sent_at, subject, body
		FROM (
			SELECT DISTINCT ON (contact_email) contact_email, sent_at, subject, body
			FROM mail_messages
			WHERE contact_email <> ''
			ORDER BY contact_email, sent_at DESC, created_at DESC
		) latest
		ORDER BY sent_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate messages: %w", err)
	}
	defer rows.Close()

	var activity []models.ContactActivity
	for rows.Next() {
		var a models.ContactActivity
		if err := rows.Scan(&a.Contact, &a.LastAt, &a.Subject, &a.Body); err != nil {
			return nil, fmt.Errorf("failed to scan contact activity: %w", err)
		}
		activity = append(activity, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contact activity: %w", err)
	}

	return activity, nil
}

// LastMessageForContact returns the newest message exchanged with a contact.
func LastMessageForContact(ctx context.Context, pool *pgxpool.Pool, contact string) (*models.Message, error) {
	row := pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM mail_messages
		WHERE contact_email = lower(trim($1))
		ORDER BY sent_at DESC, created_at DESC
		LIMIT 1
	`, contact)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last message: %w", err)
	}

	return msg, nil
}

// MessageExists reports whether a message with the given external id is stored.
func MessageExists(ctx context.Context, pool *pgxpool.Pool, externalID string) (bool, error) {
	if externalID == "" {
		return false, nil
	}

	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM mail_messages WHERE external_id = $1)
	`, externalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check message: %w", err)
	}

	return exists, nil
}

func scanMessage(row pgx.Row) (*models.Message, error) {
	var msg models.Message
	var direction, status string
	if err := row.Scan(
		&msg.ID,
		&msg.FromAddress,
		&msg.ToAddresses,
		&msg.CCAddresses,
		&msg.BCCAddresses,
		&msg.Subject,
		&msg.Body,
		&msg.SentAt,
		&direction,
		&msg.Contact,
		&msg.ExternalID,
		&status,
		&msg.Error,
		&msg.CreatedAt,
	); err != nil {
		return nil, err
	}
	msg.Direction = models.Direction(direction)
	msg.Status = models.DeliveryStatus(status)
	return &msg, nil
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
