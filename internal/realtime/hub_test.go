package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicbook/internal/domain"
)

func serveHub(t *testing.T, h *Hub) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.ServeWS(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastsReservationEvents(t *testing.T) {
	h := NewHub(nil)
	url := serveHub(t, h)
	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return h.Count() == 2 }, time.Second, 5*time.Millisecond)

	h.ReservationCreated(&domain.Reservation{ID: "res-1", Date: "2025-06-10", Time: "09:00", Status: domain.StatusPending})

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)

		var e Event
		require.NoError(t, json.Unmarshal(msg, &e))
		assert.Equal(t, EventReservationCreated, e.Type)
		require.NotNil(t, e.Reservation)
		assert.Equal(t, "res-1", e.Reservation.ID)
		assert.False(t, e.At.IsZero())
	}
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	h := NewHub(nil)
	url := serveHub(t, h)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return h.Count() == 0 }, time.Second, 5*time.Millisecond)
	assert.NotPanics(t, func() {
		h.ReservationUpdated(&domain.Reservation{ID: "res-1"})
	})
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	h := NewHub(nil)
	url := serveHub(t, h)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return h.Count() == 1 }, time.Second, 5*time.Millisecond)

	h.Close()
	assert.Equal(t, 0, h.Count())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	late := dial(t, url)
	require.NoError(t, late.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err = late.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, h.Count())
}
