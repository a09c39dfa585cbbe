package handlers

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"strconv"

	"phonecase-backend/internal/middleware"
	"phonecase-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

type imageGenerator interface {
	Generate(ctx context.Context, caller services.Caller, req services.GenerateRequest) (map[string]string, error)
}

type downloadLinks interface {
	DownloadLink(ctx context.Context, imageID string) (string, error)
}

type quotaReader interface {
	Used(ctx context.Context, token string) (int64, error)
	Ceiling() int64
}

// GenerateHandler handles image generation HTTP requests
type GenerateHandler struct {
	generation imageGenerator
	links      downloadLinks
	quota      quotaReader
}

// NewGenerateHandler creates a new generate handler
func NewGenerateHandler(generation imageGenerator, links downloadLinks, quota quotaReader) *GenerateHandler {
	return &GenerateHandler{
		generation: generation,
		links:      links,
		quota:      quota,
	}
}

// AnonPromptOnly handles POST /generate/anon/prompt-only
func (h *GenerateHandler) AnonPromptOnly(w http.ResponseWriter, r *http.Request) {
	anonID := middleware.GetAnonID(r.Context())
	if anonID == "" {
		respondError(w, "visitor token missing", http.StatusBadRequest)
		return
	}
	h.generate(w, r, services.Caller{AnonID: anonID})
}

// UserPromptOnly handles POST /generate/user/prompt-only
func (h *GenerateHandler) UserPromptOnly(w http.ResponseWriter, r *http.Request) {
	h.generate(w, r, services.Caller{UserID: middleware.GetUserID(r.Context())})
}

func (h *GenerateHandler) generate(w http.ResponseWriter, r *http.Request, caller services.Caller) {
	req, err := decodeGenerateRequest(r)
	if err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	images, err := h.generation.Generate(r.Context(), caller, req)
	if err != nil {
		respondServiceError(w, err, "generate images")
		return
	}

	respondJSON(w, http.StatusOK, images)
}

// decodeGenerateRequest reads a JSON body, or form and query values for
// clients that post the prompt as parameters.
func decodeGenerateRequest(r *http.Request) (services.GenerateRequest, error) {
	var req services.GenerateRequest

	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
		return req, nil
	}

	req.Prompt = r.FormValue("prompt")
	req.Provider = r.FormValue("provider")
	if v := r.FormValue("phone_model_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return req, err
		}
		req.PhoneModelID = id
	}
	if v := r.FormValue("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, err
		}
		req.Count = n
	}
	return req, nil
}

// GetDownloadLink handles GET /generate/get-download-link/{img_uuid}
func (h *GenerateHandler) GetDownloadLink(w http.ResponseWriter, r *http.Request) {
	imageID := chi.URLParam(r, "img_uuid")
	if imageID == "" {
		respondError(w, "img_uuid is required", http.StatusBadRequest)
		return
	}

	url, err := h.links.DownloadLink(r.Context(), imageID)
	if err != nil {
		respondServiceError(w, err, "get download link")
		return
	}

	// the body is the signed URL as a bare JSON string
	respondJSON(w, http.StatusOK, url)
}

// AnonQuota handles GET /generate/anon/quota
func (h *GenerateHandler) AnonQuota(w http.ResponseWriter, r *http.Request) {
	anonID := middleware.GetAnonID(r.Context())

	used, err := h.quota.Used(r.Context(), anonID)
	if err != nil {
		respondServiceError(w, err, "read quota")
		return
	}

	limit := h.quota.Ceiling()
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}

	respondJSON(w, http.StatusOK, map[string]int64{
		"used":      used,
		"limit":     limit,
		"remaining": remaining,
	})
}
