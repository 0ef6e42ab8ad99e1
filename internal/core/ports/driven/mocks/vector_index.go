package mocks

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
)

// MockVectorIndex is an in-memory VectorIndex for testing, partitioned by
// tenant exactly like the real adapter.
type MockVectorIndex struct {
	mu         sync.RWMutex
	partitions map[string]map[string]*domain.Document // tenant -> docID -> doc
}

// NewMockVectorIndex creates a new MockVectorIndex
func NewMockVectorIndex() *MockVectorIndex {
	return &MockVectorIndex{
		partitions: make(map[string]map[string]*domain.Document),
	}
}

func (m *MockVectorIndex) Upsert(ctx context.Context, tenantID string, doc *domain.Document) error {
	if tenantID == "" {
		return errors.New("tenant id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.partitions[tenantID] == nil {
		m.partitions[tenantID] = make(map[string]*domain.Document)
	}
	cp := *doc
	cp.TenantID = tenantID
	m.partitions[tenantID][doc.ID] = &cp
	return nil
}

func (m *MockVectorIndex) Delete(ctx context.Context, tenantID, docID string) error {
	if tenantID == "" {
		return errors.New("tenant id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.partitions[tenantID], docID)
	return nil
}

func (m *MockVectorIndex) Neighbors(ctx context.Context, tenantID string, embedding []float32, k int) ([]*driven.Neighbor, error) {
	if tenantID == "" {
		return nil, errors.New("tenant id is required")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var neighbors []*driven.Neighbor
	for _, doc := range m.partitions[tenantID] {
		if len(doc.Embedding) == 0 {
			continue
		}
		cp := *doc
		neighbors = append(neighbors, &driven.Neighbor{
			Document:   &cp,
			Similarity: CosineSimilarity(embedding, doc.Embedding),
		})
	}
	sort.Slice(neighbors, func(i, j int) bool {
		return neighbors[i].Similarity > neighbors[j].Similarity
	})
	if k > 0 && len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors, nil
}

func (m *MockVectorIndex) ListDocuments(ctx context.Context, tenantID, containerID string) ([]*domain.Document, error) {
	if tenantID == "" {
		return nil, errors.New("tenant id is required")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []*domain.Document
	for _, doc := range m.partitions[tenantID] {
		if containerID != "" && doc.ContainerID != containerID {
			continue
		}
		cp := *doc
		docs = append(docs, &cp)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *MockVectorIndex) Count(ctx context.Context, tenantID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.partitions[tenantID]), nil
}

func (m *MockVectorIndex) HealthCheck(ctx context.Context) error { return nil }

// CosineSimilarity computes cosine similarity between two vectors.
// Exported so tests can assert against the same math the mock uses.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
