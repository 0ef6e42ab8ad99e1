package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
)

// MockMergeDrafter is a deterministic MergeDrafter for testing. By default
// it concatenates both documents' content so tests can assert on the output.
type MockMergeDrafter struct {
	mu sync.Mutex

	// Draft overrides the default concatenation when set.
	Draft string

	// Err is returned from DraftMerge when set.
	Err error

	// DraftCalls counts DraftMerge invocations.
	DraftCalls int
}

// NewMockMergeDrafter creates a new MockMergeDrafter
func NewMockMergeDrafter() *MockMergeDrafter {
	return &MockMergeDrafter{}
}

func (m *MockMergeDrafter) DraftMerge(ctx context.Context, a, b *domain.DocumentSnapshot) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DraftCalls++

	if m.Err != nil {
		return "", m.Err
	}
	if m.Draft != "" {
		return m.Draft, nil
	}
	return a.Content + "\n\n" + b.Content, nil
}

func (m *MockMergeDrafter) Model() string { return "mock-drafter" }

func (m *MockMergeDrafter) Ping(ctx context.Context) error { return nil }

func (m *MockMergeDrafter) Close() error { return nil }
