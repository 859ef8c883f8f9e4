package db

import (
	"context"
	"testing"

	"github.com/leadsengine/dashboard/internal/models"
	"github.com/leadsengine/dashboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool       { return &b }
func stringPtr(s string) *string { return &s }

func TestUsers(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	alice, err := GetOrCreateUser(ctx, pool, &models.User{Email: "alice@example.com", FirstName: "Alice", LastName: "Smith"})
	require.NoError(t, err)
	assert.NotEmpty(t, alice.ID)
	assert.Equal(t, "User", alice.Role)
	assert.Nil(t, alice.IsActive)

	bob, err := GetOrCreateUser(ctx, pool, &models.User{Email: "Bob@Example.com", Role: "Admin", IsActive: boolPtr(true)})
	require.NoError(t, err)

	t.Run("get or create returns the existing row", func(t *testing.T) {
		again, err := GetOrCreateUser(ctx, pool, &models.User{Email: "alice@example.com", FirstName: "Other"})
		require.NoError(t, err)
		assert.Equal(t, alice.ID, again.ID)
		assert.Equal(t, "Alice", again.FirstName)
	})

	t.Run("list newest first", func(t *testing.T) {
		users, err := ListUsers(ctx, pool)
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, bob.ID, users[0].ID)
		assert.Equal(t, alice.ID, users[1].ID)
	})

	t.Run("by emails ignores case and unknown addresses", func(t *testing.T) {
		users, err := GetUsersByEmails(ctx, pool, []string{"bob@example.com", "ALICE@example.com ", "ghost@example.com"})
		require.NoError(t, err)
		assert.Len(t, users, 2)

		users, err = GetUsersByEmails(ctx, pool, nil)
		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("update sets only the given fields", func(t *testing.T) {
		updated, err := UpdateUser(ctx, pool, alice.ID, models.UserUpdate{IsActive: boolPtr(false)})
		require.NoError(t, err)
		require.NotNil(t, updated.IsActive)
		assert.False(t, *updated.IsActive)
		assert.Equal(t, "", updated.Status)

		updated, err = UpdateUser(ctx, pool, alice.ID, models.UserUpdate{Status: stringPtr("Blocked")})
		require.NoError(t, err)
		assert.Equal(t, "Blocked", updated.Status)
		assert.False(t, *updated.IsActive)
	})

	t.Run("unknown ids", func(t *testing.T) {
		_, err := GetUserByID(ctx, pool, "not-a-uuid")
		assert.ErrorIs(t, err, ErrUserNotFound)

		_, err = UpdateUser(ctx, pool, "00000000-0000-0000-0000-000000000000", models.UserUpdate{Status: stringPtr("Active")})
		assert.ErrorIs(t, err, ErrUserNotFound)

		assert.ErrorIs(t, DeleteUser(ctx, pool, "00000000-0000-0000-0000-000000000000"), ErrUserNotFound)
	})

	t.Run("delete cascades", func(t *testing.T) {
		sub := &models.Subscription{UserID: bob.ID, Package: "starter"}
		require.NoError(t, CreateSubscription(ctx, pool, sub))
		require.NoError(t, ReplaceLeads(ctx, pool, bob.ID, []*models.Lead{{Platform: models.PlatformGMB, Name: "Cafe", Status: "active"}}))

		require.NoError(t, DeleteUser(ctx, pool, bob.ID))

		_, err := GetUserByID(ctx, pool, bob.ID)
		assert.ErrorIs(t, err, ErrUserNotFound)

		has, err := HasSubscription(ctx, pool, bob.ID, "starter")
		require.NoError(t, err)
		assert.False(t, has)

		leads, err := ListLeads(ctx, pool, bob.ID, "")
		require.NoError(t, err)
		assert.Empty(t, leads)
	})
}
