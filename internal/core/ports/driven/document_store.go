package driven

import (
	"context"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
)

// DocumentStore mirrors indexed documents in PostgreSQL for listing and
// consistency checks. The vector index owns the embeddings; this mirror owns
// titles, hashes, and container membership.
type DocumentStore interface {
	// Save creates or updates a document
	Save(ctx context.Context, doc *domain.Document) error

	// SaveBatch saves multiple documents in a transaction
	SaveBatch(ctx context.Context, docs []*domain.Document) error

	// Get retrieves a document scoped to the tenant
	Get(ctx context.Context, tenantID, id string) (*domain.Document, error)

	// ListByTenant retrieves the tenant's documents, optionally filtered to
	// one container
	ListByTenant(ctx context.Context, tenantID, containerID string) ([]*domain.Document, error)

	// Delete removes a document scoped to the tenant
	Delete(ctx context.Context, tenantID, id string) error

	// CountByTenant returns the tenant's document count
	CountByTenant(ctx context.Context, tenantID string) (int, error)
}

// CredentialStore persists each tenant's content-repository connection
// settings. API tokens are encrypted before they reach the store.
type CredentialStore interface {
	// GetCredentials retrieves a tenant's repository credentials
	GetCredentials(ctx context.Context, tenantID string) (*domain.TenantCredentials, error)

	// SaveCredentials persists a tenant's repository credentials
	SaveCredentials(ctx context.Context, creds *domain.TenantCredentials) error

	// DeleteCredentials removes a tenant's repository credentials
	DeleteCredentials(ctx context.Context, tenantID string) error
}
