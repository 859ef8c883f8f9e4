package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadsengine/dashboard/internal/db"
	"github.com/leadsengine/dashboard/internal/models"
	"github.com/leadsengine/dashboard/internal/subscriptions"
	"github.com/sirupsen/logrus"
)

// SubscriptionsHandler assigns plans to users and serves payment receipts.
type SubscriptionsHandler struct {
	pool     *pgxpool.Pool
	receipts *subscriptions.ReceiptStore
	logger   *logrus.Logger
	now      func() time.Time
}

func NewSubscriptionsHandler(pool *pgxpool.Pool, receipts *subscriptions.ReceiptStore, logger *logrus.Logger) *SubscriptionsHandler {
	return &SubscriptionsHandler{pool: pool, receipts: receipts, logger: logger, now: time.Now}
}

type createSubscriptionRequest struct {
	UserID                 string  `json:"userId"`
	Package                string  `json:"package"`
	ExpirationDate         string  `json:"expirationDate"`
	Months                 float64 `json:"months"`
	TransactionImageBase64 string  `json:"transactionImageBase64"`
	TransactionImageName   string  `json:"transactionImageName"`
}

type subscriptionResponse struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	Package          string     `json:"package"`
	SubscriptionDate time.Time  `json:"subscriptionDate"`
	ExpirationDate   *time.Time `json:"expirationDate"`
	models.PlanLimits
	TransactionImage string    `json:"transaction_img"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Create stores a new subscription for an existing user. A receipt that
// fails to save is logged and the subscription is created without it.
func (h *SubscriptionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createSubscriptionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" || strings.TrimSpace(req.Package) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "userId and package are required")
		return
	}

	if _, err := db.GetUserByID(ctx, h.pool, req.UserID); err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "User not found")
			return
		}
		h.logger.WithError(err).Error("SubscriptionsHandler: failed to load user")
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to create subscription")
		return
	}

	now := h.now()
	sub := &models.Subscription{
		UserID:           req.UserID,
		Package:          req.Package,
		SubscriptionDate: now,
		ExpirationDate:   subscriptions.Expiration(now, req.ExpirationDate, int(req.Months)),
		Limits:           subscriptions.LimitsFor(req.Package),
	}

	if req.TransactionImageBase64 != "" {
		url, err := h.receipts.Save(req.TransactionImageBase64, req.TransactionImageName)
		if err != nil {
			h.logger.WithError(err).WithField("user_id", req.UserID).Error("SubscriptionsHandler: failed to save receipt")
		}
		sub.TransactionImage = url
	}

	if err := db.CreateSubscription(ctx, h.pool, sub); err != nil {
		h.logger.WithError(err).Error("SubscriptionsHandler: failed to create subscription")
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to create subscription")
		return
	}

	writeOK(w, h.logger, envelope{"subscription": subscriptionResponse{
		ID:               sub.ID,
		UserID:           sub.UserID,
		Package:          sub.Package,
		SubscriptionDate: sub.SubscriptionDate.UTC(),
		ExpirationDate:   utcPtr(sub.ExpirationDate),
		PlanLimits:       sub.Limits,
		TransactionImage: sub.TransactionImage,
		CreatedAt:        sub.CreatedAt.UTC(),
		UpdatedAt:        sub.UpdatedAt.UTC(),
	}})
}

// Receipt serves a stored receipt image.
func (h *SubscriptionsHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	path, err := h.receipts.Path(r.PathValue("filename"))
	if err != nil {
		writeError(w, h.logger, http.StatusNotFound, "File not found")
		return
	}
	http.ServeFile(w, r, path)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
