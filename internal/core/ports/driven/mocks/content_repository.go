package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
)

// MockContentRepository is an in-memory ContentRepository for testing. It
// simulates the external system's trash: deleted documents move to a trash
// map keyed by token and can be restored, optionally under a new id to mimic
// repositories that do not preserve identity on restore.
type MockContentRepository struct {
	mu     sync.RWMutex
	docs   map[string]*domain.DocumentSnapshot
	trash  map[string]*domain.DocumentSnapshot
	nextID int

	// PreserveIdentity controls whether RestoreDocument returns the
	// original id (true) or mints a fresh one (false).
	PreserveIdentity bool

	// Error injection for failure-path tests.
	GetErr     error
	UpdateErr  error
	DeleteErr  error
	RestoreErr error

	// Call recording so tests can assert mutation ordering.
	Calls []string
}

// NewMockContentRepository creates a new MockContentRepository
func NewMockContentRepository() *MockContentRepository {
	return &MockContentRepository{
		docs:             make(map[string]*domain.DocumentSnapshot),
		trash:            make(map[string]*domain.DocumentSnapshot),
		PreserveIdentity: true,
	}
}

// Seed adds a document directly, bypassing call recording.
func (m *MockContentRepository) Seed(snap *domain.DocumentSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *snap
	if cp.Version == 0 {
		cp.Version = 1
	}
	m.docs[snap.DocID] = &cp
}

func (m *MockContentRepository) GetDocument(ctx context.Context, docID string) (*domain.DocumentSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "get:"+docID)

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	doc, ok := m.docs[docID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *doc
	cp.CapturedAt = time.Now().UTC()
	return &cp, nil
}

func (m *MockContentRepository) UpdateDocument(ctx context.Context, docID, title, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "update:"+docID)

	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	doc, ok := m.docs[docID]
	if !ok {
		return domain.ErrNotFound
	}
	if title != "" {
		doc.Title = title
	}
	doc.Content = content
	doc.Version++
	return nil
}

func (m *MockContentRepository) DeleteDocument(ctx context.Context, docID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "delete:"+docID)

	if m.DeleteErr != nil {
		return "", m.DeleteErr
	}
	doc, ok := m.docs[docID]
	if !ok {
		return "", domain.ErrNotFound
	}
	token := "trash-" + docID
	m.trash[token] = doc
	delete(m.docs, docID)
	return token, nil
}

func (m *MockContentRepository) RestoreDocument(ctx context.Context, trashToken string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "restore:"+trashToken)

	if m.RestoreErr != nil {
		return "", m.RestoreErr
	}
	doc, ok := m.trash[trashToken]
	if !ok {
		return "", domain.ErrNotFound
	}
	delete(m.trash, trashToken)

	id := doc.DocID
	if !m.PreserveIdentity {
		m.nextID++
		id = fmt.Sprintf("%s-restored-%d", doc.DocID, m.nextID)
		doc.DocID = id
	}
	m.docs[id] = doc
	return id, nil
}

func (m *MockContentRepository) ListContainerDocuments(ctx context.Context, containerID string, limit int) ([]*domain.DocumentSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.DocumentSnapshot
	for _, doc := range m.docs {
		if containerID != "" && doc.ContainerID != containerID {
			continue
		}
		cp := *doc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockContentRepository) TestConnection(ctx context.Context) error { return nil }

// Document returns the live copy of a document, or nil if absent. Test helper.
func (m *MockContentRepository) Document(docID string) *domain.DocumentSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[docID]
	if !ok {
		return nil
	}
	cp := *doc
	return &cp
}

// InTrash reports whether the token still refers to a trashed document.
func (m *MockContentRepository) InTrash(token string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.trash[token]
	return ok
}

// MockRepositoryFactory returns a fixed repository for every tenant.
type MockRepositoryFactory struct {
	Repo *MockContentRepository
	Err  error
}

// NewMockRepositoryFactory creates a factory wrapping the given repository.
func NewMockRepositoryFactory(repo *MockContentRepository) *MockRepositoryFactory {
	return &MockRepositoryFactory{Repo: repo}
}

func (m *MockRepositoryFactory) ForTenant(ctx context.Context, creds *domain.TenantCredentials) (driven.ContentRepository, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Repo, nil
}
