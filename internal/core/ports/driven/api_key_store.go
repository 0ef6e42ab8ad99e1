package driven

import (
	"context"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
)

// APIKeyStore persists tenant API keys. Secrets are stored hashed only.
type APIKeyStore interface {
	// Save creates or updates an API key
	Save(ctx context.Context, key *domain.APIKey) error

	// Get retrieves an API key scoped to the tenant
	Get(ctx context.Context, tenantID, keyID string) (*domain.APIKey, error)

	// ListByTenant retrieves the tenant's API keys
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.APIKey, error)

	// Revoke marks an API key as revoked
	Revoke(ctx context.Context, tenantID, keyID string) error
}
