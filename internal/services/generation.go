package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"phonecase-backend/internal/generation"
	"phonecase-backend/internal/imaging"
	"phonecase-backend/internal/models"
	"phonecase-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DownloadLinkPath is where clients poll for the signed URL of an image
const DownloadLinkPath = "/generate/get-download-link/"

// Caller identifies who asked for a generation. UserID is set for
// authenticated callers, AnonID for anonymous visitors.
type Caller struct {
	UserID string
	AnonID string
}

// Anonymous reports whether the caller has no account
func (c Caller) Anonymous() bool {
	return c.UserID == ""
}

// Owner is the key under which publish notifications are delivered
func (c Caller) Owner() string {
	if c.Anonymous() {
		return "anon:" + c.AnonID
	}
	return "user:" + c.UserID
}

// GenerateRequest is a prompt for one phone model
type GenerateRequest struct {
	Prompt       string `json:"prompt"`
	PhoneModelID int64  `json:"phone_model_id"`
	Provider     string `json:"provider,omitempty"`
	Count        int    `json:"count,omitempty"`
}

type phoneModelGetter interface {
	GetModelByID(ctx context.Context, id int64) (*models.PhoneModel, error)
}

type quotaAdmitter interface {
	Admit(ctx context.Context, token string) error
}

type publishEnqueuer interface {
	Enqueue(ctx context.Context, job PublishJob) error
}

// GenerationOptions holds the tunables of GenerationService
type GenerationOptions struct {
	DefaultProvider string
	DefaultCount    int
	MaxCount        int
	KeyPrefix       string
	DPI             int
}

// GenerationService runs the generate flow: admit, resolve the phone model,
// generate, schedule publishing and answer with provisional URLs.
type GenerationService struct {
	phones     phoneModelGetter
	quota      quotaAdmitter
	generators generation.Registry
	queue      publishEnqueuer
	opts       GenerationOptions
	newID      func() string
}

// NewGenerationService creates a new generation service
func NewGenerationService(
	phones phoneModelGetter,
	quota quotaAdmitter,
	generators generation.Registry,
	queue publishEnqueuer,
	opts GenerationOptions,
) *GenerationService {
	if opts.DPI <= 0 {
		opts.DPI = imaging.DefaultDPI
	}
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = 1
	}
	if opts.MaxCount < opts.DefaultCount {
		opts.MaxCount = opts.DefaultCount
	}
	return &GenerationService{
		phones:     phones,
		quota:      quota,
		generators: generators,
		queue:      queue,
		opts:       opts,
		newID:      func() string { return uuid.New().String() },
	}
}

// Generate returns a map of image ID to either a provider-hosted URL or the
// path to poll for the signed URL once publishing completes.
func (s *GenerationService) Generate(ctx context.Context, caller Caller, req GenerateRequest) (map[string]string, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrInvalidRequest)
	}

	count := req.Count
	if count == 0 {
		count = s.opts.DefaultCount
	}
	if count < 1 || count > s.opts.MaxCount {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", ErrInvalidRequest, s.opts.MaxCount)
	}

	provider := req.Provider
	if provider == "" {
		provider = s.opts.DefaultProvider
	}
	generator, err := s.generators.Get(provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if caller.Anonymous() {
		if err := s.quota.Admit(ctx, caller.AnonID); err != nil {
			return nil, err
		}
	}

	model, err := s.phones.GetModelByID(ctx, req.PhoneModelID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPhoneModelNotFound
		}
		return nil, fmt.Errorf("failed to resolve phone model: %w", err)
	}

	width := imaging.MMToPixels(model.WidthMM, s.opts.DPI)
	height := imaging.MMToPixels(model.HeightMM, s.opts.DPI)
	if model.WidthMM <= 0 || model.HeightMM <= 0 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: phone model %d has invalid dimensions", ErrInvalidRequest, model.ID)
	}

	images, err := generator.Generate(ctx, generation.Request{
		Prompt: prompt,
		Width:  width,
		Height: height,
		Count:  count,
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("provider", provider).
			Int64("phone_model_id", model.ID).
			Msg("Image generation failed")
		return nil, fmt.Errorf("%w: %v", ErrGenerationEmpty, err)
	}
	if len(images) == 0 {
		return nil, ErrGenerationEmpty
	}

	result := make(map[string]string, len(images))
	for _, img := range images {
		id := s.newID()
		job := PublishJob{
			ImageID: id,
			Key:     fmt.Sprintf("%s/%d/%d/%s.png", s.opts.KeyPrefix, model.BrandID, model.ID, id),
			Owner:   caller.Owner(),
			Image:   img,
		}
		if err := s.queue.Enqueue(ctx, job); err != nil {
			log.Error().
				Err(err).
				Str("img_uuid", id).
				Msg("Failed to schedule image publishing")
		}

		if img.URL != "" {
			result[id] = img.URL
		} else {
			result[id] = DownloadLinkPath + id
		}
	}

	log.Info().
		Str("owner", caller.Owner()).
		Str("provider", provider).
		Int64("phone_model_id", model.ID).
		Int("width", width).
		Int("height", height).
		Int("images", len(result)).
		Msg("Images generated")

	return result, nil
}
