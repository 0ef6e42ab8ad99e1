package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EmbeddingCache = (*MockEmbeddingCache)(nil)

// MockEmbeddingCache is an in-memory mock of EmbeddingCache
type MockEmbeddingCache struct {
	mu      sync.Mutex
	entries map[string][]float32

	// GetErr and SetErr inject failures
	GetErr error
	SetErr error

	// Hits and Misses count Get outcomes
	Hits   int
	Misses int
}

// NewMockEmbeddingCache creates a new MockEmbeddingCache
func NewMockEmbeddingCache() *MockEmbeddingCache {
	return &MockEmbeddingCache{entries: make(map[string][]float32)}
}

// Get retrieves a cached vector for the given content hash
func (m *MockEmbeddingCache) Get(ctx context.Context, contentHash string) ([]float32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, false, m.GetErr
	}
	vec, ok := m.entries[contentHash]
	if !ok {
		m.Misses++
		return nil, false, nil
	}
	m.Hits++
	return vec, true, nil
}

// Set stores a vector for the given content hash
func (m *MockEmbeddingCache) Set(ctx context.Context, contentHash string, vector []float32, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.entries[contentHash] = vector
	return nil
}

// Ping always succeeds
func (m *MockEmbeddingCache) Ping(ctx context.Context) error {
	return nil
}
