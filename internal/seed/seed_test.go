package seed

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/leadsengine/dashboard/internal/db"
	"github.com/leadsengine/dashboard/internal/models"
	"github.com/leadsengine/dashboard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestGenerateLeads(t *testing.T) {
	leads := GenerateLeads(models.PlatformInstagram, 5)
	require.Len(t, leads, 5)

	first := leads[0]
	assert.Equal(t, "PhotoPro1", first.Name)
	assert.Equal(t, "instagramuser1@example.com", first.Email)
	assert.Equal(t, "Los Angeles, CA", first.Location)
	assert.Equal(t, "https://instagram.com/photopro1", first.ProfileURL)
	assert.Equal(t, "instagram enthusiast and content creator. Love connecting with people!", first.Bio)
	assert.Equal(t, "active", first.Status)

	assert.Equal(t, "InstaUser5", leads[4].Name)
	assert.Equal(t, "New York, NY", leads[4].Location)

	for _, l := range leads {
		assert.Equal(t, models.PlatformInstagram, l.Platform)
		assert.GreaterOrEqual(t, l.Followers, 100)
		assert.Less(t, l.Followers, 10_100)
		assert.True(t, strings.HasPrefix(l.Phone, "+1"))
		assert.Len(t, l.Phone, 12)
	}
}

func TestGenerateLeadsUnknownPlatform(t *testing.T) {
	leads := GenerateLeads("myspace", 2)
	require.Len(t, leads, 2)
	assert.Equal(t, "User1", leads[0].Name)
}

func TestAdmin(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()

	created, err := Admin(ctx, pool)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = Admin(ctx, pool)
	require.NoError(t, err)
	assert.False(t, created)

	admin, err := db.GetAdminByEmail(ctx, pool, TestAdminEmail)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(TestAdminPassword)))
}

func TestLeads(t *testing.T) {
	pool := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	result, err := Leads(ctx, pool, now)
	require.NoError(t, err)
	assert.Equal(t, TestUserEmail, result.User.Email)
	assert.Equal(t, models.UserStatusActive, result.User.ComputedStatus())
	assert.Equal(t, models.LeadCounts{Instagram: 50, Twitter: 50, Facebook: 50, GMB: 50}, result.Counts)

	// Seeding again replaces the leads and keeps one subscription.
	again, err := Leads(ctx, pool, now)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, again.User.ID)
	assert.Equal(t, 200, again.Counts.Total())

	subs, err := db.ListSubscriptions(ctx, pool)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, TestPackage, subs[0].Package)
	assert.Equal(t, 1000, subs[0].Limits.GMB)
	require.NotNil(t, subs[0].ExpirationDate)
	assert.True(t, subs[0].ExpirationDate.Equal(now.AddDate(0, 12, 0)))
}
