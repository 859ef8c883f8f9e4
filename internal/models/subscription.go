package models

import "time"

// PlanLimits are the per-platform lead credits of a package.
type PlanLimits struct {
	GMB       int `json:"gmbLimit"`
	Instagram int `json:"instaLimit"`
	Twitter   int `json:"twitterLimit"`
	Facebook  int `json:"facebookLimit"`
}

// Subscription assigns a package to a user until an expiration date.
type Subscription struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	Package          string     `json:"package"`
	SubscriptionDate time.Time  `json:"subscriptionDate"`
	ExpirationDate   *time.Time `json:"expirationDate"`
	Limits           PlanLimits `json:"limits"`
	TransactionImage string     `json:"transaction_img"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Contact is one row of the admin contacts table: a user joined with
// their latest subscription.
type Contact struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	Role             string `json:"role"`
	Status           string `json:"status"`
	Package          string `json:"pkg"`
	Expiration       string `json:"exp"`
	TransactionImage string `json:"transaction_img"`
	InstagramCredits int    `json:"instagramCredits"`
	TwitterCredits   int    `json:"twitterCredits"`
	FacebookCredits  int    `json:"facebookCredits"`
	GMBCredits       int    `json:"gmbCredits"`
}

// Lead platforms.
const (
	PlatformInstagram = "instagram"
	PlatformTwitter   = "twitter"
	PlatformFacebook  = "facebook"
	PlatformGMB       = "gmb"
)

// Platforms lists every lead platform in display order.
var Platforms = []string{PlatformInstagram, PlatformTwitter, PlatformFacebook, PlatformGMB}

// Lead is a scraped prospect record owned by a user.
type Lead struct {
	ID         string    `json:"id"`
	UserID     string    `json:"-"`
	Platform   string    `json:"platform"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone"`
	Location   string    `json:"location"`
	ProfileURL string    `json:"profileUrl"`
	Followers  int       `json:"followers"`
	Bio        string    `json:"bio"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"createdAt"`
}

// LeadCounts is the number of leads per platform.
type LeadCounts struct {
	Instagram int `json:"instagram"`
	Twitter   int `json:"twitter"`
	Facebook  int `json:"facebook"`
	GMB       int `json:"gmb"`
}

// Total sums all platforms.
func (c LeadCounts) Total() int {
	return c.Instagram + c.Twitter + c.Facebook + c.GMB
}
