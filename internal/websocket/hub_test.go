package websocket

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/leadsengine/dashboard/internal/mailbox"
	"github.com/leadsengine/dashboard/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hubServer upgrades every request and registers it under the ?user= value.
func hubServer(t *testing.T, hub *Hub) (*httptest.Server, chan *Client) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	registered := make(chan *Client, 10)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		registered <- hub.Register(r.URL.Query().Get("user"), conn)
	}))
	t.Cleanup(srv.Close)
	return srv, registered
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	return msg
}

func newHub(max int) *Hub {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewHub(max, logger)
}

func TestHubPublishesEvents(t *testing.T) {
	hub := newHub(10)
	srv, registered := hubServer(t, hub)

	a := dial(t, srv, "admin@test.com")
	b := dial(t, srv, "ops@test.com")
	<-registered
	<-registered

	hub.Publish(mailbox.Event{
		Type:      mailbox.EventMessageStatus,
		MessageID: "m1",
		Contact:   "bob@example.com",
		Status:    models.StatusSent,
	})

	for _, conn := range []*websocket.Conn{a, b} {
		var got map[string]any
		require.NoError(t, json.Unmarshal(read(t, conn), &got))
		assert.Equal(t, "message_status", got["type"])
		assert.Equal(t, "m1", got["messageId"])
		assert.Equal(t, "sent", got["status"])
	}
}

func TestHubSendTargetsOneUser(t *testing.T) {
	hub := newHub(10)
	srv, registered := hubServer(t, hub)

	a := dial(t, srv, "admin@test.com")
	b := dial(t, srv, "ops@test.com")
	<-registered
	<-registered

	hub.Send("ops@test.com", []byte("hi"))
	assert.Equal(t, "hi", string(read(t, b)))

	require.NoError(t, a.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := a.ReadMessage()
	assert.Error(t, err)
}

func TestHubLimitsConnectionsPerUser(t *testing.T) {
	hub := newHub(1)
	srv, registered := hubServer(t, hub)

	dial(t, srv, "admin@test.com")
	require.NotNil(t, <-registered)

	dial(t, srv, "admin@test.com")
	assert.Nil(t, <-registered)
	assert.Equal(t, 1, hub.ActiveConnections("admin@test.com"))
}

func TestHubUnregister(t *testing.T) {
	hub := newHub(10)
	srv, registered := hubServer(t, hub)

	dial(t, srv, "admin@test.com")
	client := <-registered
	require.Equal(t, 1, hub.ActiveConnections("admin@test.com"))

	hub.Unregister("admin@test.com", client)
	assert.Equal(t, 0, hub.ActiveConnections("admin@test.com"))

	hub.Unregister("admin@test.com", nil)
	hub.Broadcast([]byte("nobody"))
}
