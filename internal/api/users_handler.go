package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadsengine/dashboard/internal/accounts"
	"github.com/leadsengine/dashboard/internal/db"
	"github.com/leadsengine/dashboard/internal/mailbox"
	"github.com/leadsengine/dashboard/internal/models"
	"github.com/leadsengine/dashboard/internal/subscriptions"
	"github.com/sirupsen/logrus"
)

// UsersHandler serves the contacts table and account changes.
type UsersHandler struct {
	pool     *pgxpool.Pool
	mail     mailbox.MailService
	notifier accounts.Notifier
	logger   *logrus.Logger
}

func NewUsersHandler(pool *pgxpool.Pool, mail mailbox.MailService, notifier accounts.Notifier, logger *logrus.Logger) *UsersHandler {
	return &UsersHandler{pool: pool, mail: mail, notifier: notifier, logger: logger}
}

// Contacts lists every user with their current plan.
func (h *UsersHandler) Contacts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	users, err := db.ListUsers(ctx, h.pool)
	if err != nil {
		h.logger.WithError(err).Error("UsersHandler: failed to list users")
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to fetch contacts")
		return
	}

	subs, err := db.ListSubscriptions(ctx, h.pool)
	if err != nil {
		h.logger.WithError(err).Error("UsersHandler: failed to list subscriptions")
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to fetch contacts")
		return
	}

	data := subscriptions.BuildContacts(users, subs)
	writeOK(w, h.logger, envelope{"count": len(data), "data": data})
}

// Delete removes a user with their subscriptions and leads.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	err := db.DeleteUser(r.Context(), h.pool, id)
	if errors.Is(err, db.ErrUserNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("user_id", id).Error("UsersHandler: failed to delete user")
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	writeOK(w, h.logger, envelope{"deletedUserId": id})
}

// Update toggles isActive and/or sets the status string. When the account
// status changes, the user is emailed after the response is written.
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	var body map[string]any
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Fields of the wrong JSON type are ignored.
	var update models.UserUpdate
	if v, ok := body["isActive"].(bool); ok {
		update.IsActive = &v
	}
	if v, ok := body["status"].(string); ok {
		update.Status = &v
	}
	if update.Empty() {
		writeError(w, h.logger, http.StatusBadRequest, "No valid fields to update")
		return
	}

	prev, err := db.GetUserByID(ctx, h.pool, id)
	if err != nil && !errors.Is(err, db.ErrUserNotFound) {
		h.logger.WithError(err).WithField("user_id", id).Warn("UsersHandler: failed to load user before update")
	}

	updated, err := db.UpdateUser(ctx, h.pool, id, update)
	if errors.Is(err, db.ErrUserNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("user_id", id).Error("UsersHandler: failed to update user")
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to update user")
		return
	}

	writeOK(w, h.logger, envelope{"user": envelope{
		"id":       updated.ID,
		"isActive": updated.Active(),
		"status":   updated.EffectiveStatus(),
	}})

	h.notifyStatusChange(context.WithoutCancel(ctx), prev, updated)
}

func (h *UsersHandler) notifyStatusChange(ctx context.Context, prev, next *models.User) {
	if h.mail == nil || !h.mail.CanSend() {
		return
	}

	notice, changed, err := h.notifier.StatusChange(prev, next)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", next.ID).Error("UsersHandler: failed to render status notice")
		return
	}
	if !changed {
		return
	}

	if _, err := h.mail.Notify(ctx, next.Email, notice.Subject, notice.Text, notice.HTML); err != nil {
		h.logger.WithError(err).WithField("user_id", next.ID).Warn("UsersHandler: failed to queue status notice")
	}
}
