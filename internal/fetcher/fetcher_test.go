package fetcher

import (
	"context"
	"sync"
	"time"

	"media-preparser/internal/artcache"
)

// memStore is an in-memory ArtStore and ResponseStore.
type memStore struct {
	mu        sync.Mutex
	art       map[string]string
	responses map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{art: map[string]string{}, responses: map[string][]byte{}}
}

func (m *memStore) LookupArt(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.art[key]
	if !ok {
		return "", artcache.ErrNotFound
	}
	return u, nil
}

func (m *memStore) StoreArt(_ context.Context, key, url, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.art[key] = url
	return nil
}

func (m *memStore) LookupResponse(_ context.Context, q string, _ time.Duration) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.responses[q]
	if !ok {
		return nil, artcache.ErrNotFound
	}
	return b, nil
}

func (m *memStore) StoreResponse(_ context.Context, q string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[q] = body
	return nil
}
