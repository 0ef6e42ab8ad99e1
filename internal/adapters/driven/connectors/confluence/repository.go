package confluence

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
)

// Repository implements the ContentRepository port against a Confluence
// instance scoped to a single tenant.
type Repository struct {
	client   *Client
	tenantID string
	baseURL  string
}

var _ driven.ContentRepository = (*Repository)(nil)

// NewRepository creates a Confluence-backed content repository for a tenant.
func NewRepository(cfg *Config, tenantID string) *Repository {
	return &Repository{
		client:   NewClient(cfg),
		tenantID: tenantID,
		baseURL:  cfg.BaseURL,
	}
}

// GetDocument fetches a page with its storage body and version.
func (r *Repository) GetDocument(ctx context.Context, docID string) (*domain.DocumentSnapshot, error) {
	page, err := r.client.GetContent(ctx, docID, "")
	if err != nil {
		return nil, wrapNotFound(err, "get document %s", docID)
	}
	return r.toSnapshot(page), nil
}

// UpdateDocument writes new content as the next page version. The current
// version is fetched first; Confluence rejects updates without an explicit
// version bump.
func (r *Repository) UpdateDocument(ctx context.Context, docID, title, content string) error {
	page, err := r.client.GetContent(ctx, docID, "")
	if err != nil {
		return wrapNotFound(err, "get document %s before update", docID)
	}

	if title == "" {
		title = page.Title
	}
	version := 1
	if page.Version != nil {
		version = page.Version.Number + 1
	}

	if err := r.client.UpdateContent(ctx, docID, title, content, version); err != nil {
		return wrapNotFound(err, "update document %s", docID)
	}
	return nil
}

// DeleteDocument trashes the page. The page id doubles as the trash token
// since Confluence keeps trashed content addressable by id.
func (r *Repository) DeleteDocument(ctx context.Context, docID string) (string, error) {
	if err := r.client.DeleteContent(ctx, docID); err != nil {
		return "", wrapNotFound(err, "delete document %s", docID)
	}
	return docID, nil
}

// RestoreDocument brings a trashed page back. When in-place restore is not
// available the page is recreated from its trashed body under a new id,
// which is returned so lineage can be rewritten.
func (r *Repository) RestoreDocument(ctx context.Context, trashToken string) (string, error) {
	trashed, err := r.client.GetContent(ctx, trashToken, "trashed")
	if err != nil {
		return "", wrapNotFound(err, "get trashed document %s", trashToken)
	}
	if trashed.Status != "trashed" {
		// Already current, nothing to restore.
		return trashToken, nil
	}

	if err := r.client.RestoreContent(ctx, trashToken); err == nil {
		return trashToken, nil
	}

	// In-place restore failed; recreate the page from the trashed body.
	if trashed.Space == nil || trashed.Body == nil {
		return "", fmt.Errorf("restore document %s: trashed copy lacks space or body", trashToken)
	}
	created, err := r.client.CreateContent(ctx, trashed.Space.Key, trashed.Title, trashed.Body.Storage.Value)
	if err != nil {
		return "", fmt.Errorf("recreate document %s: %w", trashToken, err)
	}
	return created.ID, nil
}

// ListContainerDocuments lists pages in a space.
func (r *Repository) ListContainerDocuments(ctx context.Context, containerID string, limit int) ([]*domain.DocumentSnapshot, error) {
	pages, err := r.client.ListSpaceContent(ctx, containerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list container %s: %w", containerID, err)
	}

	snapshots := make([]*domain.DocumentSnapshot, 0, len(pages))
	for _, page := range pages {
		snapshots = append(snapshots, r.toSnapshot(page))
	}
	return snapshots, nil
}

// TestConnection verifies the credentials by listing a single space.
func (r *Repository) TestConnection(ctx context.Context) error {
	if _, err := r.client.ListSpaces(ctx, 1); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrRepositoryUnavailable, err)
	}
	return nil
}

func (r *Repository) toSnapshot(page *Page) *domain.DocumentSnapshot {
	snapshot := &domain.DocumentSnapshot{
		DocID:      page.ID,
		TenantID:   r.tenantID,
		Title:      page.Title,
		URL:        page.WebURL(r.baseURL),
		CapturedAt: time.Now().UTC(),
	}
	if page.Space != nil {
		snapshot.ContainerID = page.Space.Key
	}
	if page.Version != nil {
		snapshot.Version = page.Version.Number
	}
	if page.Body != nil {
		snapshot.Content = page.Body.Storage.Value
		// Storage format is XHTML; downstream normalisation keys off this.
		snapshot.Metadata = map[string]string{"content_type": "text/html"}
	}
	return snapshot
}

// wrapNotFound maps 404 responses onto the domain's not-found error.
func wrapNotFound(err error, format string, args ...any) error {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf(format+": %w", append(args, domain.ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Factory builds tenant-scoped repositories from stored credentials.
type Factory struct{}

var _ driven.RepositoryFactory = (*Factory)(nil)

// NewFactory creates a repository factory.
func NewFactory() *Factory {
	return &Factory{}
}

// ForTenant returns a Confluence repository for the tenant's credentials.
func (f *Factory) ForTenant(ctx context.Context, creds *domain.TenantCredentials) (driven.ContentRepository, error) {
	if creds == nil || !creds.IsConfigured() {
		return nil, fmt.Errorf("tenant credentials: %w", domain.ErrInvalidInput)
	}
	cfg := DefaultConfig()
	cfg.BaseURL = creds.BaseURL
	cfg.Username = creds.Username
	cfg.APIToken = creds.APIToken
	return NewRepository(cfg, creds.TenantID), nil
}
