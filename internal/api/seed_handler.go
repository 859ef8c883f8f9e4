package api

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadsengine/dashboard/internal/seed"
	"github.com/sirupsen/logrus"
)

// SeedHandler provides fixture endpoints for demos and local setup.
// These endpoints are not registered in production.
type SeedHandler struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
	now    func() time.Time
}

// NewSeedHandler creates a new SeedHandler instance.
func NewSeedHandler(pool *pgxpool.Pool, logger *logrus.Logger) *SeedHandler {
	return &SeedHandler{pool: pool, logger: logger, now: time.Now}
}

// SeedAdmin creates the demo operator account.
func (h *SeedHandler) SeedAdmin(w http.ResponseWriter, r *http.Request) {
	created, err := seed.Admin(r.Context(), h.pool)
	if err != nil {
		h.logger.WithError(err).Error("SeedHandler: failed to seed admin")
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to seed admin")
		return
	}

	message := "Test admin already exists"
	if created {
		message = "Test admin created"
	}
	writeOK(w, h.logger, envelope{"message": message})
}

// SeedLeads creates the demo customer with a testing plan and fresh leads.
func (h *SeedHandler) SeedLeads(w http.ResponseWriter, r *http.Request) {
	result, err := seed.Leads(r.Context(), h.pool, h.now())
	if err != nil {
		h.logger.WithError(err).Error("SeedHandler: failed to seed test leads")
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to seed test leads")
		return
	}

	writeOK(w, h.logger, envelope{
		"message": "Test leads created successfully",
		"user": envelope{
			"id":    result.User.ID,
			"email": result.User.Email,
			"name":  result.User.DisplayName(),
		},
		"leadsCreated": envelope{
			"instagram": result.Counts.Instagram,
			"twitter":   result.Counts.Twitter,
			"facebook":  result.Counts.Facebook,
			"gmb":       result.Counts.GMB,
			"total":     result.Counts.Total(),
		},
	})
}
