package mocks

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
)

// MockPairStore is an in-memory PairStore for testing
type MockPairStore struct {
	mu    sync.RWMutex
	pairs map[string]map[string]*domain.DuplicatePair // tenant -> pairID -> pair
}

// NewMockPairStore creates a new MockPairStore
func NewMockPairStore() *MockPairStore {
	return &MockPairStore{
		pairs: make(map[string]map[string]*domain.DuplicatePair),
	}
}

func (m *MockPairStore) ReplacePending(ctx context.Context, tenantID string, pairs []*domain.DuplicatePair) error {
	if tenantID == "" {
		return errors.New("tenant id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing := m.pairs[tenantID]
	next := make(map[string]*domain.DuplicatePair)

	// Ignored and merged pairs survive a rescan.
	byKey := make(map[string]*domain.DuplicatePair)
	for _, p := range existing {
		if p.Status != domain.PairStatusPending {
			next[p.ID] = p
			byKey[domain.PairKey(p.DocAID, p.DocBID)] = p
		}
	}
	for _, p := range pairs {
		key := domain.PairKey(p.DocAID, p.DocBID)
		if _, seen := byKey[key]; seen {
			continue
		}
		cp := *p
		cp.TenantID = tenantID
		cp.Status = domain.PairStatusPending
		next[cp.ID] = &cp
		byKey[key] = &cp
	}
	m.pairs[tenantID] = next
	return nil
}

func (m *MockPairStore) ListByTenant(ctx context.Context, tenantID string) ([]*domain.DuplicatePair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.DuplicatePair
	for _, p := range m.pairs[tenantID] {
		cp := *p
		out = append(out, &cp)
	}
	// Ties order by document ids, not the regenerated pair id, so repeated
	// scans of an unchanged index list identically.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		if out[i].DocAID != out[j].DocAID {
			return out[i].DocAID < out[j].DocAID
		}
		return out[i].DocBID < out[j].DocBID
	})
	return out, nil
}

func (m *MockPairStore) Get(ctx context.Context, tenantID, pairID string) (*domain.DuplicatePair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.pairs[tenantID][pairID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPairStore) SetStatus(ctx context.Context, tenantID, pairID string, status domain.PairStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pairs[tenantID][pairID]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	return nil
}
