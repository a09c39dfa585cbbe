package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"phonecase-backend/internal/generation"
)

func TestPublisherRoundTrip(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := newMemoryStore()
	notifier := &recordingNotifier{}
	pub := NewAssetPublisher(store, rdb, 30*time.Minute, nil, notifier)
	ctx := context.Background()

	job := PublishJob{
		ImageID: "img-1",
		Key:     "Generated/1/2/img-1.png",
		Owner:   "anon:abc",
		Image:   generation.Image{Data: []byte("png")},
	}
	if err := pub.Publish(ctx, job); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if string(store.objects[job.Key]) != "png" || store.types[job.Key] != "image/png" {
		t.Fatalf("object not stored as png: %q %q", store.objects[job.Key], store.types[job.Key])
	}

	url, err := pub.DownloadLink(ctx, "img-1")
	if err != nil {
		t.Fatalf("DownloadLink: %v", err)
	}
	if !strings.Contains(url, job.Key) {
		t.Fatalf("url %q does not reference key", url)
	}
	if ttl := mr.TTL(downloadKeyPrefix + "img-1"); ttl != 30*time.Minute {
		t.Fatalf("cache ttl = %v, want 30m", ttl)
	}
	if len(notifier.events) != 1 || notifier.events[0] != "anon:abc|img-1" {
		t.Fatalf("unexpected notifications %v", notifier.events)
	}
}

func TestPublisherUnknownImageNotFound(t *testing.T) {
	_, rdb := newTestRedis(t)
	pub := NewAssetPublisher(newMemoryStore(), rdb, time.Minute, nil, nil)

	if _, err := pub.DownloadLink(context.Background(), "never-published"); !errors.Is(err, ErrDownloadLinkNotFound) {
		t.Fatalf("err = %v, want ErrDownloadLinkNotFound", err)
	}
}

func TestPublisherExpiredLinkNotFound(t *testing.T) {
	mr, rdb := newTestRedis(t)
	pub := NewAssetPublisher(newMemoryStore(), rdb, time.Minute, nil, nil)
	ctx := context.Background()

	if err := pub.Publish(ctx, PublishJob{ImageID: "x", Key: "k.png", Image: generation.Image{Data: []byte("d")}}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := pub.DownloadLink(ctx, "x"); !errors.Is(err, ErrDownloadLinkNotFound) {
		t.Fatalf("err = %v, want ErrDownloadLinkNotFound", err)
	}
}

func TestPublisherDownloadsProviderHostedImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote-png"))
	}))
	defer srv.Close()

	_, rdb := newTestRedis(t)
	store := newMemoryStore()
	pub := NewAssetPublisher(store, rdb, time.Minute, srv.Client(), nil)

	job := PublishJob{ImageID: "r1", Key: "r1.png", Image: generation.Image{URL: srv.URL + "/out.png"}}
	if err := pub.Publish(context.Background(), job); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if string(store.objects["r1.png"]) != "remote-png" {
		t.Fatalf("stored %q", store.objects["r1.png"])
	}
}

func TestPublisherUploadFailureLeavesNoLink(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := newMemoryStore()
	store.putErr = errors.New("access denied")
	pub := NewAssetPublisher(store, rdb, time.Minute, nil, nil)
	ctx := context.Background()

	if err := pub.Publish(ctx, PublishJob{ImageID: "f", Key: "f.png", Image: generation.Image{Data: []byte("d")}}); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := pub.DownloadLink(ctx, "f"); !errors.Is(err, ErrDownloadLinkNotFound) {
		t.Fatalf("err = %v, want ErrDownloadLinkNotFound", err)
	}
}

type funcPublisher func(ctx context.Context, job PublishJob) error

func (f funcPublisher) Publish(ctx context.Context, job PublishJob) error {
	return f(ctx, job)
}

func TestPublishQueueRunsJobsAndCountsFailures(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}
	pub := funcPublisher(func(ctx context.Context, job PublishJob) error {
		mu.Lock()
		seen[job.ImageID] = true
		mu.Unlock()
		if job.ImageID == "bad" {
			return errors.New("upload failed")
		}
		return nil
	})

	q := NewPublishQueue(pub, 2, 8, time.Second)
	for _, id := range []string{"a", "b", "bad", "c"} {
		if err := q.Enqueue(context.Background(), PublishJob{ImageID: id}); err != nil {
			t.Fatalf("Enqueue(%s): %v", id, err)
		}
	}

	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}

	stats := q.Stats()
	if stats.Published != 3 || stats.Failed != 1 || stats.Pending != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(seen) != 4 {
		t.Fatalf("jobs run = %d, want 4", len(seen))
	}

	if err := q.Enqueue(context.Background(), PublishJob{ImageID: "late"}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
}

func TestPublishQueueEnqueueRespectsContext(t *testing.T) {
	block := make(chan struct{})
	pub := funcPublisher(func(ctx context.Context, job PublishJob) error {
		<-block
		return nil
	})
	q := NewPublishQueue(pub, 1, 0, time.Second)
	defer func() {
		close(block)
		q.Close(context.Background())
	}()

	// the single worker takes the first job and blocks
	if err := q.Enqueue(context.Background(), PublishJob{ImageID: "1"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, PublishJob{ImageID: "2"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestPublishQueueCloseHonorsDeadlineWithBlockedEnqueuer(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	pub := funcPublisher(func(ctx context.Context, job PublishJob) error {
		started <- struct{}{}
		<-release
		return nil
	})
	q := NewPublishQueue(pub, 1, 1, time.Minute)
	defer close(release)

	if err := q.Enqueue(context.Background(), PublishJob{ImageID: "running"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	<-started
	if err := q.Enqueue(context.Background(), PublishJob{ImageID: "buffered"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	blocked := make(chan error, 1)
	go func() {
		blocked <- q.Enqueue(context.Background(), PublishJob{ImageID: "waiting"})
	}()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	begin := time.Now()
	err := q.Close(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Close err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(begin); elapsed > time.Second {
		t.Fatalf("Close took %v, deadline was 100ms", elapsed)
	}

	select {
	case err := <-blocked:
		if !errors.Is(err, ErrQueueClosed) {
			t.Fatalf("blocked Enqueue err = %v, want ErrQueueClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("blocked Enqueue was not released by Close")
	}
}

func TestPublishQueueCloseDrainsBufferedJobs(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	var done []string
	pub := funcPublisher(func(ctx context.Context, job PublishJob) error {
		<-release
		mu.Lock()
		done = append(done, job.ImageID)
		mu.Unlock()
		return nil
	})
	q := NewPublishQueue(pub, 1, 4, time.Minute)

	for _, id := range []string{"a", "b", "c"} {
		if err := q.Enqueue(context.Background(), PublishJob{ImageID: id}); err != nil {
			t.Fatalf("Enqueue(%s): %v", id, err)
		}
	}
	close(release)

	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(done) != 3 {
		t.Fatalf("published %v, want all three", done)
	}
	// closing twice is harmless
	if err := q.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestPublishQueueEnqueueWithDoneContext(t *testing.T) {
	q := NewPublishQueue(funcPublisher(func(ctx context.Context, job PublishJob) error { return nil }), 1, 16, time.Second)
	defer q.Close(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 50; i++ {
		if err := q.Enqueue(ctx, PublishJob{ImageID: "x"}); !errors.Is(err, context.Canceled) {
			t.Fatalf("attempt %d: err = %v, want context.Canceled", i, err)
		}
	}
	if stats := q.Stats(); stats.Pending != 0 || stats.Published != 0 {
		t.Fatalf("cancelled enqueues reached the queue: %+v", stats)
	}
}
