package handlers

import (
	"net/http"

	"phonecase-backend/internal/services"
)

type queueStats interface {
	Stats() services.QueueStats
}

// HealthHandler reports liveness and publish queue counters
type HealthHandler struct {
	queue queueStats
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(queue queueStats) *HealthHandler {
	return &HealthHandler{queue: queue}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"publish_queue": h.queue.Stats(),
	})
}
