// internal/websocket/hub.go
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Message is the envelope pushed to connected clients.
type Message struct {
	Event     string      `json:"event"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type directMessage struct {
	userID int64
	data   []byte
}

// Hub fans workflow updates out to connected dashboard and partner app
// clients. Clients are keyed by user ID; a user may hold several
// connections.
type Hub struct {
	clients map[int64]map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	direct     chan directMessage

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		direct:     make(chan directMessage, 256),
		logger:     logger,
	}
}

// Run pumps registrations and outgoing messages until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case data := <-h.broadcast:
			h.sendToAll(data)
		case msg := <-h.direct:
			h.sendToUser(msg.userID, msg.data)
		}
	}
}

// Broadcast pushes an event to every connected client.
func (h *Hub) Broadcast(event string, payload interface{}) {
	data, err := json.Marshal(Message{Event: event, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		h.logger.Error("failed to marshal broadcast", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast channel full, dropping message", zap.String("event", event))
	}
}

// NotifyUser pushes an event to one user's connections.
func (h *Hub) NotifyUser(userID int64, event string, payload interface{}) {
	data, err := json.Marshal(Message{Event: event, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		h.logger.Error("failed to marshal notification", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case h.direct <- directMessage{userID: userID, data: data}:
	default:
		h.logger.Warn("direct channel full, dropping message",
			zap.Int64("user_id", userID), zap.String("event", event))
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*Client]bool)
	}
	h.clients[c.userID][c] = true
	h.logger.Debug("websocket client connected", zap.Int64("user_id", c.userID))
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.clients[c.userID]; ok {
		if _, ok := conns[c]; ok {
			delete(conns, c)
			close(c.send)
			if len(conns) == 0 {
				delete(h.clients, c.userID)
			}
		}
	}
}

func (h *Hub) sendToAll(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conns := range h.clients {
		for c := range conns {
			select {
			case c.send <- data:
			default:
				// Slow consumer, drop the frame rather than block the hub.
			}
		}
	}
}

func (h *Hub) sendToUser(userID int64, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, conns := range h.clients {
		for c := range conns {
			close(c.send)
			c.conn.Close()
		}
		delete(h.clients, userID)
	}
	h.logger.Info("websocket hub shut down")
}
