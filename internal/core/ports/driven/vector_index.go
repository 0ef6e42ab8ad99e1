package driven

import (
	"context"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
)

// Neighbor is one result of a similarity query.
type Neighbor struct {
	Document   *domain.Document
	Similarity float64
}

// VectorIndex is the per-tenant partitioned store of document embeddings.
// Every call is scoped to a tenant partition; implementations must refuse an
// empty tenant id rather than fall back to a shared namespace.
type VectorIndex interface {
	// Upsert adds or replaces a document and its embedding in the tenant's
	// partition.
	Upsert(ctx context.Context, tenantID string, doc *domain.Document) error

	// Delete removes a document's vector entry from the tenant's partition.
	Delete(ctx context.Context, tenantID, docID string) error

	// Neighbors returns the k most similar documents to the given embedding
	// within the tenant's partition, by cosine similarity, best first.
	Neighbors(ctx context.Context, tenantID string, embedding []float32, k int) ([]*Neighbor, error)

	// ListDocuments returns the documents in a tenant's partition,
	// optionally filtered to one container. Embeddings are included.
	ListDocuments(ctx context.Context, tenantID, containerID string) ([]*domain.Document, error)

	// Count returns the number of documents in the tenant's partition.
	Count(ctx context.Context, tenantID string) (int, error)

	// HealthCheck verifies the index is available
	HealthCheck(ctx context.Context) error
}
