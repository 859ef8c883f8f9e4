// Package server wires the dashboard API routes and runs the HTTP server.
package server

import (
	"fmt"
	"net/http"

	"github.com/leadsengine/dashboard/internal/accounts"
	"github.com/leadsengine/dashboard/internal/api"
	"github.com/leadsengine/dashboard/internal/app"
	"github.com/leadsengine/dashboard/internal/auth"
	"github.com/leadsengine/dashboard/internal/config"
	"github.com/leadsengine/dashboard/internal/subscriptions"
	"github.com/sirupsen/logrus"
)

// NewHandler returns the HTTP handler for the dashboard API.
func NewHandler(cfg *config.Config, a *app.App, logger *logrus.Logger) http.Handler {
	tokens := auth.NewAuthenticator(cfg.JWTSecret, cfg.TokenTTL, logger)
	receipts := subscriptions.NewReceiptStore(cfg.UploadsDir)
	notifier := accounts.Notifier{Brand: cfg.BrandName, LoginURL: cfg.LoginURL}

	var verifier api.Verifier
	if a.SMTP != nil {
		verifier = a.SMTP
	}

	authHandler := api.NewAuthHandler(a.Pool, tokens, logger)
	healthHandler := api.NewHealthHandler(a.Pool, verifier, cfg.SMTP, logger)
	usersHandler := api.NewUsersHandler(a.Pool, a.Mail, notifier, logger)
	subsHandler := api.NewSubscriptionsHandler(a.Pool, receipts, logger)
	leadsHandler := api.NewLeadsHandler(a.Pool, logger)
	mailHandler := api.NewMailHandler(a.Mail, logger)
	wsHandler := api.NewWebSocketHandler(tokens, a.Hub, logger)

	mux := http.NewServeMux()
	protected := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, tokens.RequireAuth(h))
	}

	mux.HandleFunc("GET /{$}", handleRoot)

	mux.HandleFunc("POST /api/login", authHandler.Login)
	mux.HandleFunc("GET /api/health", healthHandler.Health)

	protected("GET /api/email/health", healthHandler.EmailHealth)
	protected("GET /api/contacts", usersHandler.Contacts)
	protected("PATCH /api/users/{id}", usersHandler.Update)
	protected("DELETE /api/users/{id}", usersHandler.Delete)
	protected("POST /api/subscriptions", subsHandler.Create)
	protected("GET /api/leads/{userId}", leadsHandler.List)
	protected("POST /api/email/send", mailHandler.Send)
	protected("GET /api/chat/thread", mailHandler.GetThread)
	protected("POST /api/chat/thread", mailHandler.SetThread)
	protected("POST /api/chat/sync-inbox", mailHandler.SyncInbox)
	protected("GET /api/chat/conversations", mailHandler.Conversations)
	protected("GET /api/chat/messages", mailHandler.Messages)

	// Receipt links are embedded in <img> tags, which carry no token.
	mux.HandleFunc("GET /api/uploads/transactions/{filename}", subsHandler.Receipt)
	mux.HandleFunc("GET /uploads/transactions/{filename}", subsHandler.Receipt)

	// The WebSocket handler authenticates via query parameter
	// (since browsers can't set headers on WebSocket connections).
	mux.HandleFunc("GET /api/ws", wsHandler.Handle)

	if cfg.Environment != "production" {
		seedHandler := api.NewSeedHandler(a.Pool, logger)
		mux.HandleFunc("POST /api/seed-admin", seedHandler.SeedAdmin)
		mux.HandleFunc("POST /api/seed-test-leads", seedHandler.SeedLeads)
	}

	return withCORS(mux)
}

// withCORS reflects the request origin so the dashboard can call the API
// from its own dev server.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Dashboard API is running")
}
