package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
)

// MockMergeLedger is an in-memory MergeLedger for testing.
// It enforces the same append invariants as the real store.
type MockMergeLedger struct {
	mu  sync.RWMutex
	ops map[string][]*domain.MergeOperation // keyed by tenant

	AppendErr error
}

// NewMockMergeLedger creates a new MockMergeLedger
func NewMockMergeLedger() *MockMergeLedger {
	return &MockMergeLedger{
		ops: make(map[string][]*domain.MergeOperation),
	}
}

func (m *MockMergeLedger) Append(ctx context.Context, op *domain.MergeOperation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		err := m.AppendErr
		m.AppendErr = nil
		return err
	}
	for _, existing := range m.ops[op.TenantID] {
		if !existing.Active() {
			continue
		}
		if existing.PairKey() == op.PairKey() {
			return domain.ErrPairAlreadyMerged
		}
		if existing.DeletedDocID == op.KeptDocID || existing.DeletedDocID == op.DeletedDocID {
			return domain.ErrDocumentConsumed
		}
	}
	cp := *op
	m.ops[op.TenantID] = append(m.ops[op.TenantID], &cp)
	return nil
}

func (m *MockMergeLedger) Get(ctx context.Context, tenantID, opID string) (*domain.MergeOperation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for tenant, ops := range m.ops {
		for _, op := range ops {
			if op.ID != opID {
				continue
			}
			if tenant != tenantID {
				return nil, &domain.TenantIsolationError{
					RequestedTenant: tenantID,
					ActualTenant:    tenant,
					Resource:        "merge operation " + opID,
				}
			}
			cp := *op
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockMergeLedger) ListForTenant(ctx context.Context, tenantID string) ([]*domain.MergeOperation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ops := make([]*domain.MergeOperation, 0, len(m.ops[tenantID]))
	for _, op := range m.ops[tenantID] {
		cp := *op
		ops = append(ops, &cp)
	}
	return ops, nil
}

func (m *MockMergeLedger) LineageFor(ctx context.Context, tenantID, docID string) ([]*domain.MergeOperation, error) {
	ops, err := m.ListForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return domain.ComputeLineage(ops, docID), nil
}

func (m *MockMergeLedger) ActiveForPair(ctx context.Context, tenantID, docA, docB string) (*domain.MergeOperation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := domain.PairKey(docA, docB)
	for _, op := range m.ops[tenantID] {
		if op.Active() && op.PairKey() == key {
			cp := *op
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockMergeLedger) MarkUndone(ctx context.Context, tenantID, opID, restoredAsNewID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range m.ops[tenantID] {
		if op.ID != opID {
			continue
		}
		if op.Status != domain.MergeStatusCompleted {
			return domain.ErrOperationNotUndoable
		}
		now := time.Now()
		op.Status = domain.MergeStatusUndone
		op.UndoneAt = &now
		op.RestoredAsNewID = restoredAsNewID
		return nil
	}
	return domain.ErrNotFound
}
