package server

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/dgnsrekt/live-announcer/internal/present"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 << 10
	sendBuffer     = 64
)

// History supplies the state replayed to newly attached clients.
type History interface {
	Status() present.Status
	Records() []present.Record
}

// Hub fans presentation output out to websocket clients. It implements
// present.Presenter.
type Hub struct {
	history History
	log     *log.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub returns an empty hub. history may be nil.
func NewHub(history History, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default().WithPrefix("server")
	}
	return &Hub{history: history, log: logger, clients: make(map[*client]struct{})}
}

// PublishStatus implements present.Presenter.
func (h *Hub) PublishStatus(s present.Status) {
	msg, err := encodeStatus(s)
	if err != nil {
		h.log.Error("Encode status", "error", err)
		return
	}
	h.broadcast(msg)
}

// PublishEvent implements present.Presenter.
func (h *Hub) PublishEvent(r present.Record) {
	msg, err := encodeEvent(r)
	if err != nil {
		h.log.Error("Encode event", "error", err)
		return
	}
	h.broadcast(msg)
}

// Clients returns the number of attached clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Slow clients are cut loose rather than stalling announcements.
			h.log.Warn("Dropping slow websocket client", "remote", c.remote)
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *Hub) attach(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, sendBuffer), remote: conn.RemoteAddr().String()}

	// Replay before registering so the snapshot precedes live output.
	if h.history != nil {
		if msg, err := encodeStatus(h.history.Status()); err == nil {
			c.send <- msg
		}
		recs := h.history.Records()
		if len(recs) > sendBuffer-2 {
			recs = recs[len(recs)-(sendBuffer-2):]
		}
		for _, r := range recs {
			if msg, err := encodeEvent(r); err == nil {
				c.send <- msg
			}
		}
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("Websocket client attached", "remote", c.remote)
	return c
}

func (h *Hub) detach(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// reply queues msg for c alone.
func (h *Hub) reply(c *client, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

type client struct {
	conn   *websocket.Conn
	send   chan []byte
	remote string
}

// writePump owns all writes to the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
