package handlers

import (
	"encoding/json"
	"net/http"

	"phonecase-backend/internal/middleware"
	"phonecase-backend/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler streams publish events to the owner of a generation
type WebSocketHandler struct {
	hub       *services.WSHub
	validator middleware.TokenValidator
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(hub *services.WSHub, validator middleware.TokenValidator) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		validator: validator,
	}
}

// HandleWebSocket handles GET /generate/ws. Signed-in users pass ?token=,
// visitors are identified by their anon_id cookie.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	owner, ok := h.resolveOwner(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.hub.Register(owner, conn)
	defer h.hub.Unregister(owner, conn)

	log.Info().Str("owner", owner).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("owner", owner).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			h.reply(owner, services.WSMessage{Type: "error", Message: "Invalid message format"})
			continue
		}

		switch msg.Type {
		case "ping":
			h.reply(owner, services.WSMessage{Type: "pong"})
		default:
			h.reply(owner, services.WSMessage{Type: "error", Message: "Unknown message type"})
		}
	}
}

func (h *WebSocketHandler) resolveOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	if token := r.URL.Query().Get("token"); token != "" {
		userID, err := middleware.ValidateWebSocketToken(token, h.validator)
		if err != nil {
			respondError(w, "invalid token", http.StatusUnauthorized)
			return "", false
		}
		return services.Caller{UserID: userID}.Owner(), true
	}

	c, err := r.Cookie(middleware.AnonCookieName)
	if err != nil {
		respondError(w, "token or visitor cookie required", http.StatusUnauthorized)
		return "", false
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		respondError(w, "invalid visitor cookie", http.StatusUnauthorized)
		return "", false
	}
	return services.Caller{AnonID: c.Value}.Owner(), true
}

func (h *WebSocketHandler) reply(owner string, msg services.WSMessage) {
	if err := h.hub.SendToOwner(owner, msg); err != nil {
		log.Error().Err(err).Str("owner", owner).Str("type", msg.Type).Msg("Failed to send WebSocket message")
	}
}
