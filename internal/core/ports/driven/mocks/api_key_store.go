package mocks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
)

// MockAPIKeyStore is an in-memory APIKeyStore for testing
type MockAPIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]map[string]*domain.APIKey // tenant -> keyID -> key
}

// NewMockAPIKeyStore creates a new MockAPIKeyStore
func NewMockAPIKeyStore() *MockAPIKeyStore {
	return &MockAPIKeyStore{
		keys: make(map[string]map[string]*domain.APIKey),
	}
}

func (m *MockAPIKeyStore) Save(ctx context.Context, key *domain.APIKey) error {
	if key.TenantID == "" {
		return errors.New("tenant id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key.TenantID] == nil {
		m.keys[key.TenantID] = make(map[string]*domain.APIKey)
	}
	cp := *key
	m.keys[key.TenantID][key.ID] = &cp
	return nil
}

func (m *MockAPIKeyStore) Get(ctx context.Context, tenantID, keyID string) (*domain.APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, ok := m.keys[tenantID][keyID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *key
	return &cp, nil
}

func (m *MockAPIKeyStore) ListByTenant(ctx context.Context, tenantID string) ([]*domain.APIKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.APIKey
	for _, key := range m.keys[tenantID] {
		cp := *key
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockAPIKeyStore) Revoke(ctx context.Context, tenantID, keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.keys[tenantID][keyID]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now()
	key.RevokedAt = &now
	return nil
}
