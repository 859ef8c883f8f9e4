package db

import (
	"context"
	"testing"

	"github.com/leadsengine/dashboard/internal/models"
	"github.com/leadsengine/dashboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmins(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	_, err := GetAdminByEmail(ctx, pool, "admin@test.com")
	assert.ErrorIs(t, err, ErrAdminNotFound)

	admin := &models.Admin{Username: "admin", Email: " Admin@Test.com", PasswordHash: "hash"}
	created, err := CreateAdminIfMissing(ctx, pool, admin)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, admin.ID)

	created, err = CreateAdminIfMissing(ctx, pool, &models.Admin{Username: "other", Email: "admin@test.com", PasswordHash: "other"})
	require.NoError(t, err)
	assert.False(t, created)

	stored, err := GetAdminByEmail(ctx, pool, "ADMIN@test.com")
	require.NoError(t, err)
	assert.Equal(t, admin.ID, stored.ID)
	assert.Equal(t, "admin@test.com", stored.Email)
	assert.Equal(t, "hash", stored.PasswordHash)
}
