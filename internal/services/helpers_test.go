package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	putErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (s *memoryStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	s.objects[key] = append([]byte(nil), data...)
	s.types[key] = contentType
	return nil
}

func (s *memoryStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://bucket.example.com/" + key + "?X-Amz-Expires=" + ttl.String(), nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) NotifyAssetReady(owner, imageID, url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, owner+"|"+imageID)
}
