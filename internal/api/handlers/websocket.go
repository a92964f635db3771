package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/homeport/stackpilot/internal/app/status"
	"github.com/homeport/stackpilot/internal/pkg/logger"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSMessageType represents the type of WebSocket message
type WSMessageType string

const (
	WSTypeStatus WSMessageType = "status"
	WSTypePing   WSMessageType = "ping"
	WSTypePong   WSMessageType = "pong"
)

// WSBroadcastMessage represents a WebSocket broadcast message
type WSBroadcastMessage struct {
	Type      WSMessageType `json:"type"`
	Timestamp string        `json:"timestamp"`
	Data      interface{}   `json:"data"`
}

// WebSocketClient represents a connected WebSocket client
type WebSocketClient struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	closed bool
	mu     sync.Mutex
}

func newWebSocketClient(conn *websocket.Conn) *WebSocketClient {
	return &WebSocketClient{
		conn: conn,
		send: make(chan []byte, 256),
		done: make(chan struct{}),
	}
}

// StatusHub fans status changes from the store out to every connected
// dashboard.
type StatusHub struct {
	store   *status.Store
	clients map[*WebSocketClient]bool
	mu      sync.RWMutex
}

// NewStatusHub creates a hub over store. Call Start to begin forwarding.
func NewStatusHub(store *status.Store) *StatusHub {
	return &StatusHub{
		store:   store,
		clients: make(map[*WebSocketClient]bool),
	}
}

// Start subscribes to the store and forwards its updates to clients until
// ctx is done. Updates made after Start returns are delivered.
func (h *StatusHub) Start(ctx context.Context) {
	updates := h.store.Subscribe()
	go h.forward(ctx, updates)
}

func (h *StatusHub) forward(ctx context.Context, updates chan status.Status) {
	defer h.store.Unsubscribe(updates)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			h.Broadcast(statusMessage(st))
		}
	}
}

// Register adds a client.
func (h *StatusHub) Register(client *WebSocketClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// Unregister removes a client.
func (h *StatusHub) Unregister(client *WebSocketClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

// Clients returns the number of connected clients.
func (h *StatusHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to every client. Clients whose buffer is full
// are dropped.
func (h *StatusHub) Broadcast(message WSBroadcastMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		logger.Error("Failed to marshal WebSocket message", "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*WebSocketClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		select {
		case client.send <- data:
		default:
			h.Unregister(client)
			client.Close()
		}
	}
}

func (h *StatusHub) closeAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WebSocketClient]bool)
	h.mu.Unlock()

	for client := range clients {
		client.Close()
	}
}

// HandleStatusWebSocket streams status changes. The current status is sent
// on connect.
// GET /api/v1/ws/status
func (h *StatusHub) HandleStatusWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	client := newWebSocketClient(conn)
	if data, err := json.Marshal(statusMessage(h.store.Get())); err == nil {
		client.send <- data
	}
	h.Register(client)

	go client.writePump()
	go client.readPump(h)
}

func statusMessage(st status.Status) WSBroadcastMessage {
	return WSBroadcastMessage{
		Type:      WSTypeStatus,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      st,
	}
}

// Close closes the client connection
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.closed = true
	close(c.done)
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// readPump handles pings from the dashboard and detects disconnects.
func (c *WebSocketClient) readPump(hub *StatusHub) {
	defer func() {
		hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("WebSocket closed", "error", err)
			}
			return
		}

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &msg); err == nil && msg.Type == string(WSTypePing) {
			pong, _ := json.Marshal(WSBroadcastMessage{
				Type:      WSTypePong,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
			select {
			case c.send <- pong:
			default:
			}
		}
	}
}
