package subscriptions

import (
	"testing"
	"time"

	"github.com/leadsengine/dashboard/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitsFor(t *testing.T) {
	tests := map[string]int{
		"starter":  1000,
		" Growth ": 2000,
		"PRO":      3000,
		"testing":  1000,
		"platinum": 0,
		"":         0,
	}

	for pkg, credits := range tests {
		t.Run(pkg, func(t *testing.T) {
			assert.Equal(t, models.PlanLimits{GMB: credits, Instagram: credits, Twitter: credits, Facebook: credits}, LimitsFor(pkg))
		})
	}
}

func TestExpiration(t *testing.T) {
	now := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)

	t.Run("explicit date", func(t *testing.T) {
		exp := Expiration(now, "2025-06-30", 3)
		require.NotNil(t, exp)
		assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), *exp)

		exp = Expiration(now, "2025-06-30T10:00:00Z", 0)
		require.NotNil(t, exp)
		assert.Equal(t, 10, exp.Hour())
	})

	t.Run("unparseable explicit date", func(t *testing.T) {
		assert.Nil(t, Expiration(now, "next tuesday", 3))
	})

	t.Run("months", func(t *testing.T) {
		exp := Expiration(now, "", 12)
		require.NotNil(t, exp)
		assert.Equal(t, time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC), *exp)
	})

	t.Run("default term", func(t *testing.T) {
		exp := Expiration(now, "  ", 0)
		require.NotNil(t, exp)
		assert.Equal(t, now.AddDate(0, 0, 30), *exp)

		exp = Expiration(now, "", -2)
		require.NotNil(t, exp)
		assert.Equal(t, now.AddDate(0, 0, 30), *exp)
	})
}
