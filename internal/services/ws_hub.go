package services

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string `json:"type"`
	ImageID string `json:"img_uuid,omitempty"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub manages WebSocket connections keyed by generation owner
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*wsClient
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*wsClient),
	}
}

// Register registers a connection for an owner, replacing an older one
func (h *WSHub) Register(owner string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.connections[owner]; ok {
		existing.conn.Close()
	}
	h.connections[owner] = &wsClient{conn: conn}

	log.Info().Str("owner", owner).Msg("WebSocket connection registered")
}

// Unregister removes the connection of an owner if it is still conn
func (h *WSHub) Unregister(owner string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.connections[owner]; ok && c.conn == conn {
		c.conn.Close()
		delete(h.connections, owner)
		log.Info().Str("owner", owner).Msg("WebSocket connection unregistered")
	}
}

// IsOnline checks if an owner has a live connection
func (h *WSHub) IsOnline(owner string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.connections[owner]
	return ok
}

// SendToOwner sends a message to the connection of an owner
func (h *WSHub) SendToOwner(owner string, message WSMessage) error {
	h.mu.RLock()
	client, ok := h.connections[owner]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("owner %s is not connected", owner)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := client.write(data); err != nil {
		h.Unregister(owner, client.conn)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// NotifyAssetReady tells a connected owner that an image can be downloaded
func (h *WSHub) NotifyAssetReady(owner, imageID, url string) {
	if owner == "" || !h.IsOnline(owner) {
		return
	}

	message := WSMessage{
		Type:    "asset_ready",
		ImageID: imageID,
		URL:     url,
	}
	if err := h.SendToOwner(owner, message); err != nil {
		log.Error().
			Err(err).
			Str("owner", owner).
			Str("img_uuid", imageID).
			Msg("Failed to notify asset ready")
	}
}
