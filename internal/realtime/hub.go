package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"clinicbook/internal/domain"
	"clinicbook/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4 * 1024
	sendBuffer = 256
)

const (
	EventReservationCreated = "reservation.created"
	EventReservationUpdated = "reservation.updated"
)

// Event is pushed to every connected dashboard.
type Event struct {
	Type        string              `json:"type"`
	Reservation *domain.Reservation `json:"reservation,omitempty"`
	At          time.Time           `json:"at"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans reservation events out to connected dashboard websockets.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		log:     logging.OrNop(log),
	}
}

// ReservationCreated is called by the store after a reservation insert commits.
func (h *Hub) ReservationCreated(r *domain.Reservation) {
	h.Publish(Event{Type: EventReservationCreated, Reservation: r})
}

func (h *Hub) ReservationUpdated(r *domain.Reservation) {
	h.Publish(Event{Type: EventReservationUpdated, Reservation: r})
}

// Publish delivers e to every client without blocking. Slow clients miss it.
func (h *Hub) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		h.log.Error("encode realtime event", zap.String("type", e.Type), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn("dropping realtime event for slow client", zap.String("type", e.Type))
		}
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS registers conn and pumps events to it until it disconnects.
func (h *Hub) ServeWS(conn *websocket.Conn) {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	if !h.register(c) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		_ = conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(c) // blocks until disconnect
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Dashboards only listen; inbound frames are read to observe pongs and close.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("dashboard websocket closed", zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
