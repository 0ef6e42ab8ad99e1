package driving

import (
	"context"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
)

// KeepSide designates which document of a pair survives the merge.
type KeepSide string

const (
	KeepSideA KeepSide = "a"
	KeepSideB KeepSide = "b"
)

// MergePreview is a drafted merge that has not been applied.
type MergePreview struct {
	PairID        string  `json:"pair_id"`
	Similarity    float64 `json:"similarity"`
	MergedContent string  `json:"merged_content"`
}

// MergeService turns a chosen duplicate pair into a recorded merge operation
type MergeService interface {
	// Preview drafts merged content for a pair without touching the
	// repository. Side-effect-free and safely retryable.
	Preview(ctx context.Context, tenantID, pairID string) (*MergePreview, error)

	// Merge drives the full consolidation: draft, apply to the repository,
	// update the index, and record the operation in the ledger.
	Merge(ctx context.Context, tenantID, pairID string, keep KeepSide) (*domain.MergeResult, error)
}

// HistoryService exposes the merge ledger to callers
type HistoryService interface {
	// ListMergeHistory returns the tenant's operations chronologically.
	ListMergeHistory(ctx context.Context, tenantID string) ([]*domain.MergeOperation, error)

	// Lineage returns the merge chain transitively touching a document.
	Lineage(ctx context.Context, tenantID, docID string) ([]*domain.MergeOperation, error)

	// CheckConsistency reports documents whose repository state does not
	// match the ledger (e.g. a crash between apply and record). Flagged,
	// never auto-repaired.
	CheckConsistency(ctx context.Context, tenantID string) ([]domain.InconsistencyReport, error)
}

// UndoService validates and executes lineage-ordered merge reversal
type UndoService interface {
	// Undo reverses a recorded merge. Returns *domain.SequentialUndoError
	// when newer completed operations in the lineage must be undone first.
	Undo(ctx context.Context, tenantID, operationID string) (*domain.UndoResult, error)
}
