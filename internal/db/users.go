package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadsengine/dashboard/internal/models"
)

// ErrUserNotFound is returned when a user id or email matches no row.
var ErrUserNotFound = errors.New("user not found")

const userColumns = `id, email, first_name, last_name, phone, role, status, is_active, created_at, updated_at`

// ListUsers returns every user, newest first.
func ListUsers(ctx context.Context, pool *pgxpool.Pool) ([]*models.User, error) {
	rows, err := pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return collectUsers(rows)
}

// GetUsersByEmails returns the users whose email matches one of the given
// addresses, case-insensitively. Unknown addresses are skipped.
func GetUsersByEmails(ctx context.Context, pool *pgxpool.Pool, emails []string) ([]*models.User, error) {
	if len(emails) == 0 {
		return nil, nil
	}

	lowered := make([]string, len(emails))
	for i, e := range emails {
		lowered[i] = strings.ToLower(strings.TrimSpace(e))
	}

	rows, err := pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = ANY($1)`, lowered)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by email: %w", err)
	}
	return collectUsers(rows)
}

// GetUserByID returns one user.
func GetUserByID(ctx context.Context, pool *pgxpool.Pool, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUserNotFound
	}

	user, err := scanUser(pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// GetOrCreateUser returns the user with the given email, creating it from
// the supplied fields when it does not exist yet.
func GetOrCreateUser(ctx context.Context, pool *pgxpool.Pool, user *models.User) (*models.User, error) {
	role := user.Role
	if role == "" {
		role = "User"
	}

	stored, err := scanUser(pool.QueryRow(ctx, `
		INSERT INTO users (email, first_name, last_name, phone, role, status, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
		RETURNING `+userColumns,
		user.Email,
		user.FirstName,
		user.LastName,
		user.Phone,
		role,
		user.Status,
		user.IsActive,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to get or create user: %w", err)
	}

	return stored, nil
}

// UpdateUser applies the set fields of update and returns the new row.
func UpdateUser(ctx context.Context, pool *pgxpool.Pool, id string, update models.UserUpdate) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrUserNotFound
	}

	user, err := scanUser(pool.QueryRow(ctx, `
		UPDATE users
		SET is_active = COALESCE($2, is_active),
			status = COALESCE($3, status),
			updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		id, update.IsActive, update.Status,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return user, nil
}

// DeleteUser removes a user. Subscriptions and leads go with it.
func DeleteUser(ctx context.Context, pool *pgxpool.Pool, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrUserNotFound
	}

	tag, err := pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func collectUsers(rows pgx.Rows) ([]*models.User, error) {
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FirstName,
		&u.LastName,
		&u.Phone,
		&u.Role,
		&u.Status,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}
