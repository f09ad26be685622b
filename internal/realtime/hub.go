// Package realtime maintains the set of live websocket subscribers and
// delivers both scheduled dashboard snapshots and ad hoc events to the
// authenticated connections that asked for them.
package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/coastwatch/hazard-monitor/internal/observability"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum control message size allowed from a peer.
	maxMessageSize = 512

	// Per-client outbound buffer. A slow client that falls this far behind
	// is dropped rather than allowed to stall everyone else.
	sendBufferSize = 64
)

// Envelope is the server-to-client wire message. Fields are populated
// per message type; the rest stay omitted.
type Envelope struct {
	Type      string `json:"type"`
	Channel   string `json:"channel,omitempty"`
	Success   bool   `json:"success,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"` // unix milliseconds
	Data      any    `json:"data,omitempty"`
}

// controlMessage is the client-to-server protocol: authenticate, subscribe,
// unsubscribe and heartbeat.
type controlMessage struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	Channel string `json:"channel,omitempty"`
}

// Hub owns the connection registry. Connections enter unauthenticated with no
// subscriptions; control messages mutate their state; send failures and
// disconnects remove them. The registry is never exposed outside the hub.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// Guarded by hub.mu: mutated by the read pump, read during broadcasts.
	authenticated bool
	userID        string
	subscriptions map[string]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger:  logger,
		metrics: metrics,
		clients: make(map[*client]struct{}),
	}
}

// ServeWS upgrades an HTTP request to a websocket connection and registers it.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, sendBufferSize),
		subscriptions: make(map[string]struct{}),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	h.metrics.ConnectedClients.Set(float64(count))
	h.logger.Info("client connected", "client_count", count)

	c.enqueue(Envelope{Type: "connected", Timestamp: nowMillis()})

	go c.writePump()
	go c.readPump()
}

// Broadcast delivers a message to every authenticated connection subscribed to
// channel; with an empty channel it goes to all authenticated connections.
// Delivery is best-effort per connection: a full or closed send buffer drops
// that one client without blocking the rest.
func (h *Hub) Broadcast(msg Envelope, channel string) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast message failed", "type", msg.Type, "error", err)
		return
	}

	var failed []*client
	h.mu.RLock()
	for c := range h.clients {
		if !c.authenticated {
			continue
		}
		if channel != "" {
			if _, ok := c.subscriptions[channel]; !ok {
				continue
			}
		}
		select {
		case c.send <- data:
			h.metrics.MessagesDelivered.WithLabelValues(channelLabel(channel)).Inc()
		default:
			failed = append(failed, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range failed {
		h.metrics.SendFailures.Inc()
		h.drop(c)
	}
}

// BroadcastToUser delivers a message to the authenticated connections of one user.
func (h *Hub) BroadcastToUser(userID string, msg Envelope) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal user message failed", "type", msg.Type, "error", err)
		return
	}

	var failed []*client
	h.mu.RLock()
	for c := range h.clients {
		if !c.authenticated || c.userID != userID {
			continue
		}
		select {
		case c.send <- data:
			h.metrics.MessagesDelivered.WithLabelValues("user").Inc()
		default:
			failed = append(failed, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range failed {
		h.metrics.SendFailures.Inc()
		h.drop(c)
	}
}

// ConnectedCount returns the number of registered connections.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// drop removes a client from the registry and closes its send channel.
// Safe to call more than once per client.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.metrics.ConnectedClients.Set(float64(count))
		h.logger.Info("client disconnected", "client_count", count)
	}
}

// readPump reads control messages until the connection closes or errors.
func (c *client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		c.handleControl(data)
	}
}

// handleControl applies one inbound control message. A malformed or unknown
// message earns an error reply; the connection stays open.
func (c *client) handleControl(data []byte) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.enqueue(Envelope{Type: "error", Message: "invalid message format"})
		return
	}

	switch msg.Type {
	case "authenticate":
		c.hub.mu.Lock()
		c.authenticated = true
		c.userID = msg.UserID
		c.hub.mu.Unlock()
		c.enqueue(Envelope{Type: "authenticated", Success: true})

	case "subscribe":
		c.hub.mu.Lock()
		authenticated := c.authenticated
		if authenticated {
			c.subscriptions[msg.Channel] = struct{}{}
		}
		c.hub.mu.Unlock()
		if authenticated {
			c.enqueue(Envelope{Type: "subscribed", Channel: msg.Channel})
		}

	case "unsubscribe":
		c.hub.mu.Lock()
		authenticated := c.authenticated
		if authenticated {
			delete(c.subscriptions, msg.Channel)
		}
		c.hub.mu.Unlock()
		if authenticated {
			c.enqueue(Envelope{Type: "unsubscribed", Channel: msg.Channel})
		}

	case "heartbeat":
		c.enqueue(Envelope{Type: "heartbeat", Timestamp: nowMillis()})

	default:
		c.enqueue(Envelope{Type: "error", Message: "unknown message type"})
	}
}

// enqueue sends a reply to this client only, dropping the client when its
// buffer is full or already closed.
func (c *client) enqueue(msg Envelope) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.logger.Error("marshal client message failed", "type", msg.Type, "error", err)
		return
	}

	// Holding the read lock keeps drop (which closes the channel under the
	// write lock) from racing the send.
	full := false
	c.hub.mu.RLock()
	if _, registered := c.hub.clients[c]; registered {
		select {
		case c.send <- data:
		default:
			full = true
		}
	}
	c.hub.mu.RUnlock()

	if full {
		c.hub.metrics.SendFailures.Inc()
		c.hub.drop(c)
	}
}

// writePump flushes the send buffer to the connection and keeps the peer
// alive with periodic pings. It exits when the send channel closes.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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

func channelLabel(channel string) string {
	if channel == "" {
		return "all"
	}
	return channel
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
