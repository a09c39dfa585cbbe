package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrMissingToken indicates that a provider was configured without credentials
var ErrMissingToken = errors.New("provider api token is required")

const (
	defaultHuggingFaceURL   = "https://router.huggingface.co/hf-inference/models"
	defaultHuggingFaceModel = "black-forest-labs/FLUX.1-schnell"
)

// HuggingFaceOptions configures the HuggingFace text-to-image client
type HuggingFaceOptions struct {
	Token      string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// HuggingFaceGenerator calls a synchronous text-to-image endpoint once per
// requested image. Calls run concurrently and fail as a whole if any fails.
type HuggingFaceGenerator struct {
	token      string
	baseURL    string
	model      string
	httpClient *http.Client
}

type huggingFaceRequest struct {
	Inputs     string                `json:"inputs"`
	Parameters huggingFaceParameters `json:"parameters"`
}

type huggingFaceParameters struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type huggingFaceError struct {
	Error string `json:"error"`
}

// NewHuggingFaceGenerator constructs the generator with defaults applied
func NewHuggingFaceGenerator(opts HuggingFaceOptions) *HuggingFaceGenerator {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultHuggingFaceURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultHuggingFaceModel
	}
	return &HuggingFaceGenerator{
		token:      strings.TrimSpace(opts.Token),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
	}
}

// Generate fulfils the Generator interface.
func (g *HuggingFaceGenerator) Generate(ctx context.Context, req Request) ([]Image, error) {
	if g.token == "" {
		return nil, ErrMissingToken
	}
	count := req.Count
	if count <= 0 {
		count = 1
	}

	images := make([]Image, count)
	eg, egCtx := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		i := i
		eg.Go(func() error {
			data, err := g.textToImage(egCtx, req)
			if err != nil {
				return fmt.Errorf("image %d of %d: %w", i+1, count, err)
			}
			images[i] = Image{Data: data}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("huggingface generation failed: %w", err)
	}
	return images, nil
}

func (g *HuggingFaceGenerator) textToImage(ctx context.Context, req Request) ([]byte, error) {
	body, err := json.Marshal(huggingFaceRequest{
		Inputs:     req.Prompt,
		Parameters: huggingFaceParameters{Width: req.Width, Height: req.Height},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/"+g.model, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "image/png")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call provider: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr huggingFaceError
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("provider returned %d", resp.StatusCode)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("provider returned an empty image")
	}
	return payload, nil
}

var _ Generator = (*HuggingFaceGenerator)(nil)
