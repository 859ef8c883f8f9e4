package subscriptions

import (
	"github.com/leadsengine/dashboard/internal/models"
)

// BuildContacts joins users with their subscriptions for the contacts table.
// subs must be ordered newest first. Package, expiration and credits come
// from a user's latest subscription; the receipt comes from the latest one
// that has a receipt.
func BuildContacts(users []*models.User, subs []*models.Subscription) []models.Contact {
	latest := make(map[string]*models.Subscription)
	withReceipt := make(map[string]*models.Subscription)
	for _, s := range subs {
		if s.UserID == "" {
			continue
		}
		if _, ok := latest[s.UserID]; !ok {
			latest[s.UserID] = s
		}
		if _, ok := withReceipt[s.UserID]; !ok && s.TransactionImage != "" {
			withReceipt[s.UserID] = s
		}
	}

	contacts := make([]models.Contact, 0, len(users))
	for _, u := range users {
		c := models.Contact{
			ID:     u.ID,
			Email:  u.Email,
			Name:   u.DisplayName(),
			Phone:  u.Phone,
			Role:   u.Role,
			Status: u.ComputedStatus(),
		}
		if c.Role == "" {
			c.Role = "User"
		}

		if s := latest[u.ID]; s != nil {
			c.Package = s.Package
			if s.ExpirationDate != nil {
				c.Expiration = s.ExpirationDate.UTC().Format("2006-01-02")
			}
			c.InstagramCredits = s.Limits.Instagram
			c.TwitterCredits = s.Limits.Twitter
			c.FacebookCredits = s.Limits.Facebook
			c.GMBCredits = s.Limits.GMB
		}
		if s := withReceipt[u.ID]; s != nil {
			c.TransactionImage = s.TransactionImage
		}

		contacts = append(contacts, c)
	}

	return contacts
}
