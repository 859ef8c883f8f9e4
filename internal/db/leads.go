package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadsengine/dashboard/internal/models"
)

// ListLeads returns a user's leads newest first. An empty platform lists all.
func ListLeads(ctx context.Context, pool *pgxpool.Pool, userID, platform string) ([]*models.Lead, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, nil
	}

	rows, err := pool.Query(ctx, `
		SELECT id, user_id, platform, name, email, phone, location, profile_url, followers, bio, status, created_at
		FROM leads
		WHERE user_id = $1
		  AND ($2 = '' OR platform = $2)
		ORDER BY created_at DESC, id
	`, userID, platform)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		var l models.Lead
		if err := rows.Scan(
			&l.ID,
			&l.UserID,
			&l.Platform,
			&l.Name,
			&l.Email,
			&l.Phone,
			&l.Location,
			&l.ProfileURL,
			&l.Followers,
			&l.Bio,
			&l.Status,
			&l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leads: %w", err)
	}

	return leads, nil
}

// CountLeadsByPlatform returns how many leads a user has on each platform.
func CountLeadsByPlatform(ctx context.Context, pool *pgxpool.Pool, userID string) (models.LeadCounts, error) {
	var counts models.LeadCounts
	if _, err := uuid.Parse(userID); err != nil {
		return counts, nil
	}

	rows, err := pool.Query(ctx, `
		SELECT platform, count(*)
		FROM leads
		WHERE user_id = $1
		GROUP BY platform
	`, userID)
	if err != nil {
		return counts, fmt.Errorf("failed to count leads: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var platform string
		var n int
		if err := rows.Scan(&platform, &n); err != nil {
			return counts, fmt.Errorf("failed to scan lead count: %w", err)
		}
		switch platform {
		case models.PlatformInstagram:
			counts.Instagram = n
		case models.PlatformTwitter:
			counts.Twitter = n
		case models.PlatformFacebook:
			counts.Facebook = n
		case models.PlatformGMB:
			counts.GMB = n
		}
	}

	if err := rows.Err(); err != nil {
		return counts, fmt.Errorf("error iterating lead counts: %w", err)
	}

	return counts, nil
}

// ReplaceLeads deletes a user's leads and inserts the given ones in a single
// transaction.
func ReplaceLeads(ctx context.Context, pool *pgxpool.Pool, userID string, leads []*models.Lead) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM leads WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete leads: %w", err)
	}

	batch := &pgx.Batch{}
	for _, l := range leads {
		batch.Queue(`
			INSERT INTO leads (user_id, platform, name, email, phone, location, profile_url, followers, bio, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, userID, l.Platform, l.Name, l.Email, l.Phone, l.Location, l.ProfileURL, l.Followers, l.Bio, l.Status)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert leads: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit leads: %w", err)
	}

	return nil
}
