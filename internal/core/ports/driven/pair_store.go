package driven

import (
	"context"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
)

// PairStore caches duplicate pairs per tenant so the UI can page through them
// without re-querying the index. The cache is derived data: a rescan may
// replace pending pairs wholesale, but ignored and merged statuses survive.
type PairStore interface {
	// ReplacePending replaces the tenant's pending pairs with the given set,
	// preserving existing ignored/merged statuses for matching pairs.
	ReplacePending(ctx context.Context, tenantID string, pairs []*domain.DuplicatePair) error

	// ListByTenant returns the tenant's pairs, best similarity first.
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.DuplicatePair, error)

	// Get retrieves one pair scoped to the tenant.
	Get(ctx context.Context, tenantID, pairID string) (*domain.DuplicatePair, error)

	// SetStatus updates a pair's status.
	SetStatus(ctx context.Context, tenantID, pairID string, status domain.PairStatus) error
}
