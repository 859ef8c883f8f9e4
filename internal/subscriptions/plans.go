// Package subscriptions holds the billing rules of the leads product: plan
// credits, expiration dates, payment receipts and the contacts table.
package subscriptions

import (
	"strings"
	"time"

	"github.com/leadsengine/dashboard/internal/models"
)

// DefaultTerm is used when neither an expiration date nor a number of months
// is given.
const DefaultTerm = 30 * 24 * time.Hour

var planCredits = map[string]int{
	"starter": 1000,
	"growth":  2000,
	"pro":     3000,
	"testing": 1000,
}

// LimitsFor returns the per-platform credits of a package. The key is
// matched case-insensitively; unknown packages get no credits.
func LimitsFor(pkg string) models.PlanLimits {
	n := planCredits[strings.ToLower(strings.TrimSpace(pkg))]
	return models.PlanLimits{GMB: n, Instagram: n, Twitter: n, Facebook: n}
}

// Expiration computes when a subscription created at now ends. An explicit
// date wins and yields nil when it cannot be parsed; otherwise a positive
// number of months is added, falling back to DefaultTerm.
func Expiration(now time.Time, explicit string, months int) *time.Time {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		t, ok := parseDate(explicit)
		if !ok {
			return nil
		}
		return &t
	}

	var exp time.Time
	if months > 0 {
		exp = now.AddDate(0, months, 0)
	} else {
		exp = now.Add(DefaultTerm)
	}
	return &exp
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
