package events

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"FinScreen/internal/domain/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev map[string]interface{}
	require.NoError(t, json.Unmarshal(msg, &ev))
	return ev
}

func TestHub_BroadcastsToSubscribers(t *testing.T) {
	h := NewHub(nil)
	a := dial(t, h)
	b := dial(t, h)
	require.Eventually(t, func() bool { return h.Subscribers() == 2 }, time.Second, 5*time.Millisecond)

	h.Notify(context.Background(), models.Event{Type: models.EventState, Payload: models.RunSnapshot{State: models.StateRunning}})

	for _, conn := range []*websocket.Conn{a, b} {
		ev := readEvent(t, conn)
		assert.Equal(t, models.EventState, ev["type"])
		payload := ev["payload"].(map[string]interface{})
		assert.Equal(t, "running", payload["state"])
		assert.NotEmpty(t, ev["at"])
	}
}

func TestHub_RedirectToLoginSendsSessionExpired(t *testing.T) {
	h := NewHub(nil)
	conn := dial(t, h)
	require.Eventually(t, func() bool { return h.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	h.RedirectToLogin(context.Background(), "Token is invalid or expired")

	ev := readEvent(t, conn)
	assert.Equal(t, models.EventSessionExpired, ev["type"])
	payload := ev["payload"].(map[string]interface{})
	assert.Equal(t, "Token is invalid or expired", payload["reason"])
	assert.Equal(t, "/login", payload["redirect"])
}

func TestHub_DropsDisconnectedSubscribers(t *testing.T) {
	h := NewHub(nil)
	conn := dial(t, h)
	require.Eventually(t, func() bool { return h.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return h.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_NotifyWithoutSubscribers(t *testing.T) {
	h := NewHub(nil)
	assert.NotPanics(t, func() {
		h.Notify(context.Background(), models.Event{Type: models.EventStatus})
	})
}
