package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leadsengine/dashboard/internal/auth"
	"github.com/leadsengine/dashboard/internal/db"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler signs operators in.
type AuthHandler struct {
	pool   *pgxpool.Pool
	tokens *auth.Authenticator
	logger *logrus.Logger
}

func NewAuthHandler(pool *pgxpool.Pool, tokens *auth.Authenticator, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{pool: pool, tokens: tokens, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login checks an admin's password and returns a bearer token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		writeError(w, h.logger, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	admin, err := db.GetAdminByEmail(r.Context(), h.pool, email)
	if errors.Is(err, db.ErrAdminNotFound) {
		writeError(w, h.logger, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("AuthHandler: failed to look up admin")
		writeError(w, h.logger, http.StatusInternalServerError, "Login failed")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		h.logger.WithField("email", admin.Email).Info("AuthHandler: wrong password")
		writeError(w, h.logger, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.tokens.IssueToken(admin.Email, admin.Username)
	if err != nil {
		h.logger.WithError(err).Error("AuthHandler: failed to issue token")
		writeError(w, h.logger, http.StatusInternalServerError, "Login failed")
		return
	}

	writeOK(w, h.logger, envelope{
		"token": token,
		"user":  envelope{"email": admin.Email, "username": admin.Username},
	})
}
