package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/leadsengine/dashboard/internal/auth"
	ws "github.com/leadsengine/dashboard/internal/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketHandler handles the /api/ws endpoint for live delivery and sync events.
type WebSocketHandler struct {
	tokens *auth.Authenticator
	hub    *ws.Hub
	logger *logrus.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler instance.
func NewWebSocketHandler(tokens *auth.Authenticator, hub *ws.Hub, logger *logrus.Logger) *WebSocketHandler {
	return &WebSocketHandler{tokens: tokens, hub: hub, logger: logger}
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The dashboard is served from another origin in development; access
		// is controlled by the token.
		return true
	},
}

// Handle upgrades the HTTP connection to a WebSocket and registers it with the Hub.
// Browsers cannot set headers on WebSocket connections, so the token is read
// from ?token= first and from the Authorization header as a fallback.
func (h *WebSocketHandler) Handle(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		fields := strings.Fields(r.Header.Get("Authorization"))
		if len(fields) == 2 && strings.EqualFold(fields[0], "Bearer") {
			token = fields[1]
		}
	}

	if token == "" {
		h.logger.Debug("WebSocketHandler: no token provided")
		writeError(w, h.logger, http.StatusUnauthorized, "Unauthorized")
		return
	}

	email, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.WithError(err).Info("WebSocketHandler: token validation failed")
		writeError(w, h.logger, http.StatusUnauthorized, "Unauthorized")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).WithField("user", email).Warn("WebSocketHandler: failed to upgrade connection")
		return
	}

	client := h.hub.Register(email, conn)
	if client == nil {
		h.logger.WithField("user", email).Info("WebSocketHandler: connection rejected (max connections exceeded)")
		return
	}

	h.logger.WithField("user", email).Debug("WebSocketHandler: connection established")

	go h.readLoop(email, client)
}

// readLoop reads until the connection is closed, then unregisters the client.
// Incoming messages are ignored.
func (h *WebSocketHandler) readLoop(email string, client *ws.Client) {
	conn := client.Conn()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.hub.Unregister(email, client)
}
