package mocks

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
)

// MockDocumentStore is an in-memory DocumentStore for testing
type MockDocumentStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]*domain.Document // tenant -> docID -> doc
}

// NewMockDocumentStore creates a new MockDocumentStore
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		docs: make(map[string]map[string]*domain.Document),
	}
}

func (m *MockDocumentStore) Save(ctx context.Context, doc *domain.Document) error {
	if doc.TenantID == "" {
		return errors.New("tenant id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs[doc.TenantID] == nil {
		m.docs[doc.TenantID] = make(map[string]*domain.Document)
	}
	cp := *doc
	m.docs[doc.TenantID][doc.ID] = &cp
	return nil
}

func (m *MockDocumentStore) SaveBatch(ctx context.Context, docs []*domain.Document) error {
	for _, doc := range docs {
		if err := m.Save(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

func (m *MockDocumentStore) Get(ctx context.Context, tenantID, id string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[tenantID][id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *MockDocumentStore) ListByTenant(ctx context.Context, tenantID, containerID string) ([]*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Document
	for _, doc := range m.docs[tenantID] {
		if containerID != "" && doc.ContainerID != containerID {
			continue
		}
		cp := *doc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockDocumentStore) Delete(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[tenantID][id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.docs[tenantID], id)
	return nil
}

func (m *MockDocumentStore) CountByTenant(ctx context.Context, tenantID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs[tenantID]), nil
}

// MockCredentialStore is an in-memory CredentialStore for testing
type MockCredentialStore struct {
	mu    sync.RWMutex
	creds map[string]*domain.TenantCredentials
}

// NewMockCredentialStore creates a new MockCredentialStore
func NewMockCredentialStore() *MockCredentialStore {
	return &MockCredentialStore{
		creds: make(map[string]*domain.TenantCredentials),
	}
}

func (m *MockCredentialStore) GetCredentials(ctx context.Context, tenantID string) (*domain.TenantCredentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.creds[tenantID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockCredentialStore) SaveCredentials(ctx context.Context, creds *domain.TenantCredentials) error {
	if creds.TenantID == "" {
		return errors.New("tenant id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *creds
	m.creds[creds.TenantID] = &cp
	return nil
}

func (m *MockCredentialStore) DeleteCredentials(ctx context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, tenantID)
	return nil
}
