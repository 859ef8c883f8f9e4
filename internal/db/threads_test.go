package db

import (
	"context"
	"testing"

	"github.com/leadsengine/dashboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreads(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	_, err := GetThreadByContact(ctx, pool, "ivy@example.com")
	assert.ErrorIs(t, err, ErrThreadNotFound)

	thread, err := UpsertThread(ctx, pool, " Ivy@Example.com", "Welcome aboard")
	require.NoError(t, err)
	assert.Equal(t, "ivy@example.com", thread.Contact)
	assert.Equal(t, "Welcome aboard", thread.Subject)

	updated, err := UpsertThread(ctx, pool, "ivy@example.com", "Renewal")
	require.NoError(t, err)
	assert.Equal(t, "Renewal", updated.Subject)
	assert.False(t, updated.UpdatedAt.Before(thread.UpdatedAt))

	stored, err := GetThreadByContact(ctx, pool, "IVY@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Renewal", stored.Subject)
}
