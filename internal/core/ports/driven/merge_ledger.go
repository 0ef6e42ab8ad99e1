package driven

import (
	"context"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
)

// MergeLedger is the authoritative, append-mostly record of merge operations.
// Entries are immutable once appended except for the completed -> undone
// transition, and are never physically deleted.
type MergeLedger interface {
	// Append records a completed merge operation. It fails with
	// domain.ErrPairAlreadyMerged if an active operation already exists for
	// the same unordered document pair, and with domain.ErrDocumentConsumed
	// if either document is the deleted side of an earlier active operation.
	Append(ctx context.Context, op *domain.MergeOperation) error

	// Get retrieves one operation. Returns a TenantIsolationError if the
	// operation exists but belongs to a different tenant.
	Get(ctx context.Context, tenantID, opID string) (*domain.MergeOperation, error)

	// ListForTenant returns the tenant's operations in chronological order.
	ListForTenant(ctx context.Context, tenantID string) ([]*domain.MergeOperation, error)

	// LineageFor returns all operations transitively reachable from docID
	// through the touches relation (kept or deleted side), ordered by
	// timestamp ascending.
	LineageFor(ctx context.Context, tenantID, docID string) ([]*domain.MergeOperation, error)

	// ActiveForPair returns the active (completed, non-undone) operation for
	// the unordered pair, or domain.ErrNotFound.
	ActiveForPair(ctx context.Context, tenantID, docA, docB string) (*domain.MergeOperation, error)

	// MarkUndone transitions completed -> undone and sets UndoneAt, plus the
	// restored-as-new id when the repository assigned one. Fails with
	// domain.ErrOperationNotUndoable unless the operation is completed.
	MarkUndone(ctx context.Context, tenantID, opID, restoredAsNewID string) error
}
