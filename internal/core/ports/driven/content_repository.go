package driven

import (
	"context"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
)

// ContentRepository is the external system of record for documents
// (Confluence). It has no transactions: callers sequence mutations so that a
// mid-sequence failure leaves a recoverable state, and they snapshot before
// every destructive step.
type ContentRepository interface {
	// GetDocument fetches a page's full content and metadata, suitable for
	// snapshotting before a mutation.
	GetDocument(ctx context.Context, docID string) (*domain.DocumentSnapshot, error)

	// UpdateDocument replaces a page's content (and title, if non-empty),
	// creating a new version in the repository.
	UpdateDocument(ctx context.Context, docID, title, content string) error

	// DeleteDocument moves a page to the repository's trash and returns a
	// token that can later restore it.
	DeleteDocument(ctx context.Context, docID string) (trashToken string, err error)

	// RestoreDocument restores a trashed page. The returned id equals the
	// original id when the repository preserved the page's identity, and a
	// new id when it had to recreate the page.
	RestoreDocument(ctx context.Context, trashToken string) (restoredID string, err error)

	// ListContainerDocuments lists pages in a container (space). limit <= 0
	// means no limit.
	ListContainerDocuments(ctx context.Context, containerID string, limit int) ([]*domain.DocumentSnapshot, error)

	// TestConnection verifies the repository is reachable with the
	// configured credentials.
	TestConnection(ctx context.Context) error
}

// RepositoryFactory builds a ContentRepository client from a tenant's stored
// connection credentials.
type RepositoryFactory interface {
	// ForTenant returns a repository client scoped to the tenant's
	// configured content repository.
	ForTenant(ctx context.Context, creds *domain.TenantCredentials) (ContentRepository, error)
}
