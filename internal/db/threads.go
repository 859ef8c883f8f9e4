package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadsengine/dashboard/internal/models"
)

// ErrThreadNotFound is returned when no subject is stored for a contact.
var ErrThreadNotFound = errors.New("thread not found")

// GetThreadByContact returns the stored subject for a contact. The address is
// matched case-insensitively.
func GetThreadByContact(ctx context.Context, pool *pgxpool.Pool, contact string) (*models.Thread, error) {
	var thread models.Thread
	err := pool.QueryRow(ctx, `
		SELECT contact_email, subject, updated_at
		FROM mail_threads
		WHERE contact_email = lower(trim($1))
	`, contact).Scan(&thread.Contact, &thread.Subject, &thread.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get thread: %w", err)
	}

	return &thread, nil
}

// UpsertThread creates or overwrites the subject remembered for a contact.
func UpsertThread(ctx context.Context, pool *pgxpool.Pool, contact, subject string) (*models.Thread, error) {
	var thread models.Thread
	err := pool.QueryRow(ctx, `
		INSERT INTO mail_threads (contact_email, subject)
		VALUES (lower(trim($1)), $2)
		ON CONFLICT (contact_email) DO UPDATE SET
			subject = EXCLUDED.subject,
			updated_at = now()
		RETURNING contact_email, subject, updated_at
	`, contact, subject).Scan(&thread.Contact, &thread.Subject, &thread.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to upsert thread: %w", err)
	}

	return &thread, nil
}
