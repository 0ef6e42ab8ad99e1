package mocks

import (
	"context"
	"hash/fnv"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
)

// MockEmbeddingService is a mock implementation of EmbeddingService for testing
type MockEmbeddingService struct {
	dimensions int
	model      string
	FailNext   bool

	// EmbedCalls counts EmbedDocument invocations
	EmbedCalls int

	// Fixed maps exact content to a fixed embedding, letting tests control
	// similarity between specific documents.
	Fixed map[string][]float32
}

// NewMockEmbeddingService creates a new MockEmbeddingService
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{
		dimensions: 8,
		model:      "mock-embedding-model",
		Fixed:      make(map[string][]float32),
	}
}

func (m *MockEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if m.FailNext {
		m.FailNext = false
		return nil, domain.ErrEmbeddingUnavailable
	}
	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.embeddingFor(text)
	}
	return result, nil
}

func (m *MockEmbeddingService) EmbedDocument(ctx context.Context, content string) ([]float32, error) {
	m.EmbedCalls++
	if m.FailNext {
		m.FailNext = false
		return nil, domain.ErrEmbeddingUnavailable
	}
	return m.embeddingFor(content), nil
}

func (m *MockEmbeddingService) Dimensions() int { return m.dimensions }

func (m *MockEmbeddingService) Model() string { return m.model }

func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error { return nil }

func (m *MockEmbeddingService) Close() error { return nil }

// embeddingFor returns the fixed embedding when registered, otherwise a
// deterministic hash-derived vector.
func (m *MockEmbeddingService) embeddingFor(text string) []float32 {
	if v, ok := m.Fixed[text]; ok {
		return v
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, m.dimensions)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>33))/float32(1<<31) + 0.5
	}
	return vec
}
