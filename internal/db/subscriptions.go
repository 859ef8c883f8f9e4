package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadsengine/dashboard/internal/models"
)

const subscriptionColumns = `
	id,
	user_id,
	package,
	subscription_date,
	expiration_date,
	gmb_limit,
	insta_limit,
	twitter_limit,
	facebook_limit,
	transaction_img,
	created_at,
	updated_at`

// CreateSubscription inserts a subscription and fills in its generated fields.
func CreateSubscription(ctx context.Context, pool *pgxpool.Pool, sub *models.Subscription) error {
	err := pool.QueryRow(ctx, `
		INSERT INTO subscriptions (
			user_id,
			package,
			subscription_date,
			expiration_date,
			gmb_limit,
			insta_limit,
			twitter_limit,
			facebook_limit,
			transaction_img
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`,
		sub.UserID,
		sub.Package,
		sub.SubscriptionDate,
		sub.ExpirationDate,
		sub.Limits.GMB,
		sub.Limits.Instagram,
		sub.Limits.Twitter,
		sub.Limits.Facebook,
		sub.TransactionImage,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	return nil
}

// ListSubscriptions returns every subscription, newest first.
func ListSubscriptions(ctx context.Context, pool *pgxpool.Pool) ([]*models.Subscription, error) {
	rows, err := pool.Query(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*models.Subscription
	for rows.Next() {
		var s models.Subscription
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.Package,
			&s.SubscriptionDate,
			&s.ExpirationDate,
			&s.Limits.GMB,
			&s.Limits.Instagram,
			&s.Limits.Twitter,
			&s.Limits.Facebook,
			&s.TransactionImage,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return subs, nil
}

// HasSubscription reports whether the user already holds the package.
func HasSubscription(ctx context.Context, pool *pgxpool.Pool, userID, pkg string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM subscriptions WHERE user_id = $1 AND package = $2)
	`, userID, pkg).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check subscription: %w", err)
	}
	return exists, nil
}
