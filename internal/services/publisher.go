package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"phonecase-backend/internal/generation"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	downloadKeyPrefix = "download_link:"
	pngContentType    = "image/png"
)

type objectStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// AssetNotifier is told when a published image becomes downloadable
type AssetNotifier interface {
	NotifyAssetReady(owner, imageID, url string)
}

// PublishJob is one generated image waiting to be stored
type PublishJob struct {
	ImageID string
	Key     string
	Owner   string
	Image   generation.Image
}

// AssetPublisher stores generated images and caches signed download URLs
type AssetPublisher struct {
	store      objectStore
	rdb        redis.Cmdable
	urlTTL     time.Duration
	httpClient *http.Client
	notifier   AssetNotifier
}

// NewAssetPublisher creates a publisher. Cached links live as long as the
// signed URLs they hold.
func NewAssetPublisher(store objectStore, rdb redis.Cmdable, urlTTL time.Duration, httpClient *http.Client, notifier AssetNotifier) *AssetPublisher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &AssetPublisher{
		store:      store,
		rdb:        rdb,
		urlTTL:     urlTTL,
		httpClient: httpClient,
		notifier:   notifier,
	}
}

// Publish uploads the image, signs a download URL and caches it under the image ID
func (p *AssetPublisher) Publish(ctx context.Context, job PublishJob) error {
	data := job.Image.Data
	if len(data) == 0 {
		if job.Image.URL == "" {
			return fmt.Errorf("image %s has neither data nor url", job.ImageID)
		}
		fetched, err := generation.Download(ctx, p.httpClient, job.Image.URL)
		if err != nil {
			return fmt.Errorf("failed to fetch provider image: %w", err)
		}
		data = fetched
	}

	if err := p.store.Put(ctx, job.Key, pngContentType, data); err != nil {
		return err
	}

	url, err := p.store.PresignGet(ctx, job.Key, p.urlTTL)
	if err != nil {
		return err
	}

	if err := p.rdb.Set(ctx, downloadKeyPrefix+job.ImageID, url, p.urlTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache download link: %w", err)
	}

	log.Info().
		Str("img_uuid", job.ImageID).
		Str("key", job.Key).
		Int("bytes", len(data)).
		Msg("Image published")

	if p.notifier != nil {
		p.notifier.NotifyAssetReady(job.Owner, job.ImageID, url)
	}
	return nil
}

// DownloadLink returns the cached signed URL of a published image
func (p *AssetPublisher) DownloadLink(ctx context.Context, imageID string) (string, error) {
	url, err := p.rdb.Get(ctx, downloadKeyPrefix+imageID).Result()
	if err == redis.Nil || (err == nil && url == "") {
		return "", ErrDownloadLinkNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read download link: %w", err)
	}
	return url, nil
}
