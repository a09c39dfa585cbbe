package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"phonecase-backend/internal/imaging"

	"github.com/rs/zerolog/log"
)

const (
	defaultReplicateURL   = "https://api.replicate.com/v1"
	defaultReplicateModel = "black-forest-labs/flux-schnell"
)

// ReplicateOptions configures the Replicate predictions client
type ReplicateOptions struct {
	Token        string
	BaseURL      string
	Model        string
	PollInterval time.Duration
	HTTPClient   *http.Client
	Timeout      time.Duration
}

// ReplicateGenerator submits one prediction asking for all outputs at once and
// waits for it to finish. Failures are logged and reported as an empty result.
type ReplicateGenerator struct {
	token        string
	baseURL      string
	model        string
	pollInterval time.Duration
	httpClient   *http.Client
}

type replicateInput struct {
	Prompt       string `json:"prompt"`
	AspectRatio  string `json:"aspect_ratio"`
	NumOutputs   int    `json:"num_outputs"`
	OutputFormat string `json:"output_format"`
}

type replicatePrediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
}

// NewReplicateGenerator constructs the generator with defaults applied
func NewReplicateGenerator(opts ReplicateOptions) *ReplicateGenerator {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultReplicateURL
	}
	model := strings.Trim(strings.TrimSpace(opts.Model), "/")
	if model == "" {
		model = defaultReplicateModel
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	return &ReplicateGenerator{
		token:        strings.TrimSpace(opts.Token),
		baseURL:      baseURL,
		model:        model,
		pollInterval: poll,
		httpClient:   httpClient,
	}
}

// Generate fulfils the Generator interface.
func (g *ReplicateGenerator) Generate(ctx context.Context, req Request) ([]Image, error) {
	count := req.Count
	if count <= 0 {
		count = 1
	}

	urls, err := g.predict(ctx, req.Prompt, imaging.NearestAspectRatio(req.Width, req.Height), count)
	if err != nil {
		log.Error().
			Err(err).
			Str("model", g.model).
			Int("count", count).
			Msg("Replicate generation failed")
		return []Image{}, nil
	}

	images := make([]Image, 0, len(urls))
	for _, u := range urls {
		images = append(images, Image{URL: u})
	}
	return images, nil
}

func (g *ReplicateGenerator) predict(ctx context.Context, prompt, aspectRatio string, count int) ([]string, error) {
	if g.token == "" {
		return nil, ErrMissingToken
	}

	body, err := json.Marshal(map[string]replicateInput{
		"input": {
			Prompt:       prompt,
			AspectRatio:  aspectRatio,
			NumOutputs:   count,
			OutputFormat: "png",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode prediction: %w", err)
	}

	pred, err := g.do(ctx, http.MethodPost, g.baseURL+"/models/"+g.model+"/predictions", body)
	if err != nil {
		return nil, err
	}

	for !isTerminal(pred.Status) {
		if pred.URLs.Get == "" {
			return nil, fmt.Errorf("prediction %s has no polling url", pred.ID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.pollInterval):
		}
		pred, err = g.do(ctx, http.MethodGet, pred.URLs.Get, nil)
		if err != nil {
			return nil, err
		}
	}

	if pred.Status != "succeeded" {
		return nil, fmt.Errorf("prediction %s %s: %v", pred.ID, pred.Status, pred.Error)
	}
	return outputURLs(pred.Output)
}

func (g *ReplicateGenerator) do(ctx context.Context, method, url string, body []byte) (*replicatePrediction, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.token)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Prefer", "wait")
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var pred replicatePrediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, fmt.Errorf("failed to decode prediction: %w", err)
	}
	return &pred, nil
}

func isTerminal(status string) bool {
	switch status {
	case "succeeded", "failed", "canceled":
		return true
	default:
		return false
	}
}

// outputURLs accepts both a list of URLs and a single URL string
func outputURLs(raw json.RawMessage) ([]string, error) {
	var urls []string
	if err := json.Unmarshal(raw, &urls); err == nil {
		return urls, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return []string{single}, nil
	}
	return nil, fmt.Errorf("unexpected prediction output: %s", string(raw))
}

var _ Generator = (*ReplicateGenerator)(nil)
