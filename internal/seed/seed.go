// Package seed creates the fixtures used on fresh installs and in demos.
package seed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadsengine/dashboard/internal/db"
	"github.com/leadsengine/dashboard/internal/models"
	"github.com/leadsengine/dashboard/internal/subscriptions"
	"golang.org/x/crypto/bcrypt"
)

const (
	TestAdminEmail    = "admin@test.com"
	TestAdminUsername = "admin"
	TestAdminPassword = "password123"

	TestUserEmail    = "test1@gmail.com"
	TestPackage      = "testing"
	LeadsPerPlatform = 50
)

// Admin creates the demo operator account unless it exists and reports
// whether it was created.
func Admin(ctx context.Context, pool *pgxpool.Pool) (bool, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(TestAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}

	return db.CreateAdminIfMissing(ctx, pool, &models.Admin{
		Username:     TestAdminUsername,
		Email:        TestAdminEmail,
		PasswordHash: string(hash),
	})
}

// LeadsResult describes the seeded demo user.
type LeadsResult struct {
	User   *models.User
	Counts models.LeadCounts
}

// Leads makes sure the demo user exists with a testing subscription and
// replaces their leads with a fresh generated set.
func Leads(ctx context.Context, pool *pgxpool.Pool, now time.Time) (*LeadsResult, error) {
	active := true
	user, err := db.GetOrCreateUser(ctx, pool, &models.User{
		Email:     TestUserEmail,
		FirstName: "Test",
		LastName:  "User",
		Phone:     "+1234567890",
		Role:      "user",
		Status:    models.UserStatusActive,
		IsActive:  &active,
	})
	if err != nil {
		return nil, err
	}

	has, err := db.HasSubscription(ctx, pool, user.ID, TestPackage)
	if err != nil {
		return nil, err
	}
	if !has {
		exp := now.AddDate(0, 12, 0)
		if err := db.CreateSubscription(ctx, pool, &models.Subscription{
			UserID:           user.ID,
			Package:          TestPackage,
			SubscriptionDate: now,
			ExpirationDate:   &exp,
			Limits:           subscriptions.LimitsFor(TestPackage),
		}); err != nil {
			return nil, err
		}
	}

	var leads []*models.Lead
	for _, platform := range models.Platforms {
		leads = append(leads, GenerateLeads(platform, LeadsPerPlatform)...)
	}
	if err := db.ReplaceLeads(ctx, pool, user.ID, leads); err != nil {
		return nil, err
	}

	counts, err := db.CountLeadsByPlatform(ctx, pool, user.ID)
	if err != nil {
		return nil, err
	}

	return &LeadsResult{User: user, Counts: counts}, nil
}

var platformNames = map[string][]string{
	models.PlatformInstagram: {"InstaUser", "PhotoPro", "ContentCreator", "Influencer", "BrandBuilder"},
	models.PlatformTwitter:   {"TwitterUser", "TechTweeter", "NewsHawk", "Blogger", "Journalist"},
	models.PlatformFacebook:  {"FBUser", "SocialBee", "CommunityManager", "PageAdmin", "GroupMod"},
	models.PlatformGMB:       {"LocalBiz", "Restaurant", "Cafe", "Store", "Service"},
}

var locations = []string{"New York, NY", "Los Angeles, CA", "Chicago, IL", "Houston, TX", "Phoenix, AZ"}

// GenerateLeads returns count synthetic leads for a platform, numbered from 1.
func GenerateLeads(platform string, count int) []*models.Lead {
	names := platformNames[platform]
	if len(names) == 0 {
		names = []string{"User"}
	}

	leads := make([]*models.Lead, 0, count)
	for i := 1; i <= count; i++ {
		base := names[i%len(names)]
		leads = append(leads, &models.Lead{
			Platform:   platform,
			Name:       fmt.Sprintf("%s%d", base, i),
			Email:      fmt.Sprintf("%suser%d@example.com", platform, i),
			Phone:      fmt.Sprintf("+1%010d", rand.Int64N(10_000_000_000)),
			Location:   locations[i%len(locations)],
			ProfileURL: fmt.Sprintf("https://%s.com/%s%d", platform, strings.ToLower(base), i),
			Followers:  rand.IntN(10_000) + 100,
			Bio:        platform + " enthusiast and content creator. Love connecting with people!",
			Status:     "active",
		})
	}
	return leads
}
