package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadsengine/dashboard/internal/models"
)

// ErrAdminNotFound is returned when no operator account has the email.
var ErrAdminNotFound = errors.New("admin not found")

// GetAdminByEmail looks up an operator account case-insensitively.
func GetAdminByEmail(ctx context.Context, pool *pgxpool.Pool, email string) (*models.Admin, error) {
	var admin models.Admin
	err := pool.QueryRow(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM admins
		WHERE lower(email) = lower(trim($1))
	`, email).Scan(&admin.ID, &admin.Username, &admin.Email, &admin.PasswordHash, &admin.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAdminNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}

	return &admin, nil
}

// CreateAdminIfMissing inserts the account unless its email is taken and
// reports whether a row was created.
func CreateAdminIfMissing(ctx context.Context, pool *pgxpool.Pool, admin *models.Admin) (bool, error) {
	err := pool.QueryRow(ctx, `
		INSERT INTO admins (username, email, password_hash)
		VALUES ($1, lower(trim($2)), $3)
		ON CONFLICT (email) DO NOTHING
		RETURNING id, created_at
	`, admin.Username, admin.Email, admin.PasswordHash).Scan(&admin.ID, &admin.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create admin: %w", err)
	}

	return true, nil
}
