package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"phonecase-backend/internal/generation"
	"phonecase-backend/internal/middleware"
	"phonecase-backend/internal/models"
	"phonecase-backend/internal/repository"
	"phonecase-backend/internal/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

type fixedModels map[int64]*models.PhoneModel

func (f fixedModels) GetModelByID(ctx context.Context, id int64) (*models.PhoneModel, error) {
	m, ok := f[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m, nil
}

type pngGenerator struct{}

func (pngGenerator) Generate(ctx context.Context, req generation.Request) ([]generation.Image, error) {
	return []generation.Image{{Data: []byte("png")}}, nil
}

type bucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *bucket) Put(ctx context.Context, key, contentType string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *bucket) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://bucket.example.com/" + key, nil
}

// newAnonFlowRouter wires the real quota gate, visitor cookie, generation
// service and publisher against miniredis and an in-memory bucket.
func newAnonFlowRouter(t *testing.T) (http.Handler, *services.PublishQueue) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	quota := services.NewQuotaGate(rdb, 1, 30*24*time.Hour)
	publisher := services.NewAssetPublisher(&bucket{objects: map[string][]byte{}}, rdb, time.Hour, nil, nil)
	queue := services.NewPublishQueue(publisher, 1, 8, time.Second)
	t.Cleanup(func() { queue.Close(context.Background()) })

	phones := fixedModels{7: {ID: 7, BrandID: 3, Name: "Pixel 8", WidthMM: 70.8, HeightMM: 150.5}}
	svc := services.NewGenerationService(phones, quota, generation.Registry{"huggingface": pngGenerator{}}, queue, services.GenerationOptions{
		DefaultProvider: "huggingface",
		DefaultCount:    1,
		MaxCount:        4,
		KeyPrefix:       "Generated",
	})

	h := NewGenerateHandler(svc, publisher, quota)
	r := chi.NewRouter()
	r.With(middleware.AnonymousVisitor(false)).Post("/generate/anon/prompt-only", h.AnonPromptOnly)
	r.Get("/generate/get-download-link/{img_uuid}", h.GetDownloadLink)
	return r, queue
}

func postAnonPrompt(router http.Handler, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/generate/anon/prompt-only", strings.NewReader(`{"prompt":"sunset","phone_model_id":7}`))
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAnonymousVisitorGeneratesOnceThenMustLogin(t *testing.T) {
	router, queue := newAnonFlowRouter(t)

	first := postAnonPrompt(router, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("first generate status = %d body = %s", first.Code, first.Body)
	}
	var visitor *http.Cookie
	for _, c := range first.Result().Cookies() {
		if c.Name == middleware.AnonCookieName {
			visitor = c
		}
	}
	if visitor == nil {
		t.Fatalf("no %s cookie set", middleware.AnonCookieName)
	}
	var images map[string]string
	if err := json.NewDecoder(first.Body).Decode(&images); err != nil || len(images) != 1 {
		t.Fatalf("images = %v err = %v", images, err)
	}

	second := postAnonPrompt(router, visitor)
	if second.Code != http.StatusForbidden || !strings.Contains(second.Body.String(), "kindly login") {
		t.Fatalf("second generate status = %d body = %s", second.Code, second.Body)
	}

	// wait for publishing to finish
	if err := queue.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for id := range images {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/generate/get-download-link/"+id, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("download link status = %d body = %s", rec.Code, rec.Body)
		}
		var link string
		if err := json.NewDecoder(rec.Body).Decode(&link); err != nil || !strings.HasSuffix(link, "Generated/3/7/"+id+".png") {
			t.Fatalf("link = %q err = %v", link, err)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/generate/get-download-link/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id status = %d, want 404", rec.Code)
	}
}
