package driving

import (
	"context"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
)

// PairingOptions tunes a duplicate scan.
type PairingOptions struct {
	// Threshold is θ: the minimum cosine similarity for a candidate pair.
	// Zero means the tenant default.
	Threshold float64

	// ContainerID restricts the scan to one repository container (space).
	// Empty means all containers.
	ContainerID string

	// Neighbors is k for the per-document nearest-neighbor query.
	// Zero means the tenant default.
	Neighbors int

	// DocIDs restricts the scan to pairs touching these documents.
	// Used for the scoped rescan after an undo.
	DocIDs []string
}

// PairingService produces and manages ranked duplicate candidates
type PairingService interface {
	// ListCandidatePairs returns the tenant's cached pairs, best similarity
	// first, ties broken by older document id.
	ListCandidatePairs(ctx context.Context, tenantID string) ([]*domain.DuplicatePair, error)

	// Scan recomputes candidate pairs from the vector index and refreshes
	// the cache. Idempotent given an unchanged index.
	Scan(ctx context.Context, tenantID string, opts PairingOptions) ([]*domain.DuplicatePair, error)

	// IgnorePair marks a pair as not-a-duplicate so scans stop surfacing it.
	IgnorePair(ctx context.Context, tenantID, pairID string) error
}
