package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/leadsengine/dashboard/internal/mailbox"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 10 * time.Second

// Client wraps a WebSocket connection. Writes are serialized because a
// gorilla connection supports one concurrent writer.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Conn returns the underlying WebSocket connection.
func (c *Client) Conn() *websocket.Conn {
	return c.conn
}

func (c *Client) write(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Hub manages active dashboard sessions per admin.
// It supports multiple connections per admin (e.g., multiple tabs).
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]struct{} // admin email -> set of clients
	maxPerUser int
	logger     *logrus.Logger
}

// NewHub creates a new Hub with a per-admin connection limit.
func NewHub(maxPerUser int, logger *logrus.Logger) *Hub {
	if maxPerUser <= 0 {
		maxPerUser = 10
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		maxPerUser: maxPerUser,
		logger:     logger,
	}
}

// Register adds a WebSocket connection for the given admin.
// If the limit is exceeded, the new connection is closed and nil is returned.
func (h *Hub) Register(user string, conn *websocket.Conn) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	userClients, ok := h.clients[user]
	if !ok {
		userClients = make(map[*Client]struct{})
		h.clients[user] = userClients
	}

	if len(userClients) >= h.maxPerUser {
		h.logger.WithField("user", user).Warnf("WebSocket: exceeded max connections (%d), closing new connection", h.maxPerUser)
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many connections for this user"),
			time.Time{},
		)
		_ = conn.Close()
		return nil
	}

	client := &Client{conn: conn}
	userClients[client] = struct{}{}
	return client
}

// Unregister removes a client for the given admin and closes the connection.
func (h *Hub) Unregister(user string, client *Client) {
	if client == nil {
		return
	}

	h.mu.Lock()
	if userClients, ok := h.clients[user]; ok {
		delete(userClients, client)
		if len(userClients) == 0 {
			delete(h.clients, user)
		}
	}
	h.mu.Unlock()

	_ = client.conn.Close()
}

// Send writes a message to all active clients of one admin.
func (h *Hub) Send(user string, msg []byte) {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[user]))
	for c := range h.clients[user] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	h.deliver(map[string][]*Client{user: targets}, msg)
}

// Broadcast writes a message to every connected client.
func (h *Hub) Broadcast(msg []byte) {
	h.mu.RLock()
	targets := make(map[string][]*Client, len(h.clients))
	for user, set := range h.clients {
		for c := range set {
			targets[user] = append(targets[user], c)
		}
	}
	h.mu.RUnlock()

	h.deliver(targets, msg)
}

func (h *Hub) deliver(targets map[string][]*Client, msg []byte) {
	for user, clients := range targets {
		for _, client := range clients {
			if err := client.write(msg); err != nil {
				h.logger.WithError(err).WithField("user", user).Warn("WebSocket: failed to write message")
				go h.Unregister(user, client)
			}
		}
	}
}

// Publish broadcasts a mailbox event as JSON to every session.
func (h *Hub) Publish(event mailbox.Event) {
	msg, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).WithField("type", event.Type).Error("WebSocket: failed to encode event")
		return
	}
	h.Broadcast(msg)
}

// ActiveConnections returns the number of active connections for an admin.
func (h *Hub) ActiveConnections(user string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients[user])
}
