package handlers

import (
	"context"
	"net/http"
	"strconv"

	"phonecase-backend/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type phoneCatalogue interface {
	ListBrands(ctx context.Context) ([]models.CatalogItem, error)
	ListModels(ctx context.Context, brandID int64) ([]models.CatalogItem, error)
}

// PhoneHandler serves the phone brand and model catalogue
type PhoneHandler struct {
	phones phoneCatalogue
}

// NewPhoneHandler creates a new phone handler
func NewPhoneHandler(phones phoneCatalogue) *PhoneHandler {
	return &PhoneHandler{phones: phones}
}

// ListBrands handles GET /phones/brands
func (h *PhoneHandler) ListBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := h.phones.ListBrands(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list brands")
		respondError(w, "Failed to list brands", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, brands)
}

// ListModels handles GET /phones/brands/{brand_id}/models
func (h *PhoneHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	brandID, err := strconv.ParseInt(chi.URLParam(r, "brand_id"), 10, 64)
	if err != nil || brandID <= 0 {
		respondError(w, "brand_id must be a positive integer", http.StatusBadRequest)
		return
	}

	phoneModels, err := h.phones.ListModels(r.Context(), brandID)
	if err != nil {
		log.Error().Err(err).Int64("brand_id", brandID).Msg("Failed to list models")
		respondError(w, "Failed to list models", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, phoneModels)
}
