package api

import (
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadsengine/dashboard/internal/db"
	"github.com/leadsengine/dashboard/internal/models"
	"github.com/sirupsen/logrus"
)

type LeadsHandler struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

func NewLeadsHandler(pool *pgxpool.Pool, logger *logrus.Logger) *LeadsHandler {
	return &LeadsHandler{pool: pool, logger: logger}
}

// List returns a user's leads, optionally for one platform, with the
// per-platform totals.
func (h *LeadsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := r.PathValue("userId")
	platform := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("platform")))

	leads, err := db.ListLeads(ctx, h.pool, userID, platform)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("LeadsHandler: failed to list leads")
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to fetch leads")
		return
	}

	counts, err := db.CountLeadsByPlatform(ctx, h.pool, userID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Error("LeadsHandler: failed to count leads")
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to fetch leads")
		return
	}

	if leads == nil {
		leads = []*models.Lead{}
	}

	writeOK(w, h.logger, envelope{
		"count":  len(leads),
		"counts": counts,
		"total":  counts.Total(),
		"leads":  leads,
	})
}
