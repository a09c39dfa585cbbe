// Package generation wraps the external text-to-image providers behind a
// single Generator capability.
package generation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// Provider names accepted by the generate endpoints
const (
	ProviderHuggingFace = "huggingface"
	ProviderReplicate   = "replicate"
)

// Request describes one generation call in pixels
type Request struct {
	Prompt string
	Width  int
	Height int
	Count  int
}

// Image is a single generated output. Providers fill Data, URL or both.
type Image struct {
	URL  string
	Data []byte
}

// Generator turns a prompt and pixel size into images. An empty result with a
// nil error means the provider produced nothing.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]Image, error)
}

// Registry selects a Generator by provider name
type Registry map[string]Generator

// Get returns the generator registered under name
func (r Registry) Get(name string) (Generator, error) {
	g, ok := r[strings.ToLower(strings.TrimSpace(name))]
	if !ok || g == nil {
		return nil, fmt.Errorf("unknown provider %q, expected one of %s", name, strings.Join(r.Names(), ", "))
	}
	return g, nil
}

// Names lists registered provider names in a stable order
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Download fetches the bytes behind a provider-hosted image URL
func Download(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	return data, nil
}
