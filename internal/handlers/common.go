package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"phonecase-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse represents a plain acknowledgement
type MessageResponse struct {
	Message string `json:"message"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondServiceError maps a service error to its HTTP status. Unknown
// errors are logged and hidden behind a 500.
func respondServiceError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidToken):
		respondError(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, services.ErrQuotaExceeded), errors.Is(err, services.ErrResetTokenInvalid):
		respondError(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, services.ErrPhoneModelNotFound),
		errors.Is(err, services.ErrDownloadLinkNotFound),
		errors.Is(err, services.ErrUserNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrUserExists):
		respondError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrGenerationEmpty):
		respondError(w, "image generation failed", http.StatusBadGateway)
	default:
		log.Error().Err(err).Msg("Failed to " + action)
		respondError(w, "Failed to "+action, http.StatusInternalServerError)
	}
}
