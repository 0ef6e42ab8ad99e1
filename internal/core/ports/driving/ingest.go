package driving

import (
	"context"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
)

// IngestResult summarizes an ingestion run.
type IngestResult struct {
	TenantID       string `json:"tenant_id"`
	ContainerID    string `json:"container_id"`
	DocumentsAdded int    `json:"documents_added"`
	Skipped        int    `json:"skipped"`
	Errors         int    `json:"errors"`
}

// IngestService loads repository content into the vector index so the pairing
// engine has something to scan
type IngestService interface {
	// IngestContainer fetches a container's pages, embeds them, and upserts
	// them into the tenant's index partition and document mirror.
	IngestContainer(ctx context.Context, tenantID, containerID string, limit int) (*IngestResult, error)

	// ReindexDocuments re-fetches and re-embeds specific documents,
	// typically after an undo restored them.
	ReindexDocuments(ctx context.Context, tenantID string, docIDs []string) (*IngestResult, error)
}

// CredentialService manages a tenant's content-repository connection
type CredentialService interface {
	// GetCredentials returns the tenant's connection settings (token blank).
	GetCredentials(ctx context.Context, tenantID string) (*domain.TenantCredentials, error)

	// SaveCredentials stores connection settings after verifying them
	// against the repository.
	SaveCredentials(ctx context.Context, creds *domain.TenantCredentials) error

	// TestConnection verifies the stored credentials still work.
	TestConnection(ctx context.Context, tenantID string) error
}

// AuthService validates caller tokens and issues them for API keys
type AuthService interface {
	// ValidateToken parses a bearer token and returns the caller's context.
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)

	// IssueToken exchanges a tenant API key for a signed bearer token.
	IssueToken(ctx context.Context, tenantID, keyID, secret string) (string, error)
}
