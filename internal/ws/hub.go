package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod is the interval for sending pings to peer. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize is the maximum message size allowed from peer.
	maxMessageSize = 512
)

// Update types pushed to viewers.
const (
	UpdateWaypointSaved = "waypoint_saved"
	UpdateTripEnded     = "trip_ended"
)

// WaypointUpdate describes a waypoint the auto-save engine just accepted.
type WaypointUpdate struct {
	WaypointID uuid.UUID `json:"waypointId"`
	Reason     string    `json:"reason"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Altitude   float64   `json:"altitude"`
	RoadName   string    `json:"roadName,omitempty"`
	Address    string    `json:"address,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// TripUpdate is one message for the viewers of a trip.
type TripUpdate struct {
	Type     string          `json:"type"`
	TripID   uuid.UUID       `json:"tripId"`
	Waypoint *WaypointUpdate `json:"waypoint,omitempty"`
	EndedAt  *time.Time      `json:"endedAt,omitempty"`
}

// Client represents a single WebSocket connection subscribed to a trip.
type Client struct {
	Conn   *websocket.Conn
	TripID uuid.UUID
	Send   chan []byte
}

// NewClient creates a client for conn watching tripID.
func NewClient(conn *websocket.Conn, tripID uuid.UUID) *Client {
	return &Client{Conn: conn, TripID: tripID, Send: make(chan []byte, 256)}
}

// Hub manages WebSocket connections organized by trip rooms.
type Hub struct {
	rooms      map[uuid.UUID]map[*Client]bool // tripID -> set of clients
	register   chan *Client
	unregister chan *Client
	broadcast  chan *TripUpdate
	done       chan struct{}
	mu         sync.RWMutex
	logger     *zap.Logger
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *TripUpdate, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's event loop and returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.rooms[client.TripID]; !ok {
				h.rooms[client.TripID] = make(map[*Client]bool)
			}
			h.rooms[client.TripID][client] = true
			h.mu.Unlock()

			h.logger.Debug("client registered",
				zap.String("trip_id", client.TripID.String()),
			)

		case client := <-h.unregister:
			h.remove(client)

			h.logger.Debug("client unregistered",
				zap.String("trip_id", client.TripID.String()),
			)

		case update := <-h.broadcast:
			data, err := json.Marshal(update)
			if err != nil {
				h.logger.Error("failed to marshal trip update", zap.Error(err))
				continue
			}

			h.broadcastToRoom(update.TripID, data)
		}
	}
}

// Register adds a client to the hub. It reports false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues an update for every client watching the trip. When the queue is full
// the update is dropped: viewers are best effort and must never stall ingestion.
func (h *Hub) Broadcast(update *TripUpdate) {
	select {
	case h.broadcast <- update:
	default:
		h.logger.Warn("broadcast queue full, dropping trip update",
			zap.String("trip_id", update.TripID.String()),
			zap.String("type", update.Type),
		)
	}
}

// Viewers returns how many clients currently watch tripID.
func (h *Hub) Viewers(tripID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[tripID])
}

// broadcastToRoom sends raw data to all clients in a trip room.
func (h *Hub) broadcastToRoom(tripID uuid.UUID, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[tripID]
	if !ok {
		return
	}

	for client := range clients {
		select {
		case client.Send <- data:
		default:
			// Slow consumer.
			delete(clients, client)
			close(client.Send)
		}
	}
	if len(clients) == 0 {
		delete(h.rooms, tripID)
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, ok := h.rooms[client.TripID]; ok {
		if _, exists := clients[client]; exists {
			delete(clients, client)
			close(client.Send)
			if len(clients) == 0 {
				delete(h.rooms, client.TripID)
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for tripID, clients := range h.rooms {
		for client := range clients {
			close(client.Send)
		}
		delete(h.rooms, tripID)
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub.
// Viewers only receive; anything they send is discarded.
func (c *Client) ReadPump(hub *Hub) {
	defer func() {
		hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				hub.logger.Warn("websocket read error", zap.Error(err))
			}
			break
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection.
// Each update is written as its own text frame.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
