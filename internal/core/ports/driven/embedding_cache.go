package driven

import (
	"context"
	"time"
)

// EmbeddingCache memoizes embedding vectors by content hash so re-ingesting
// unchanged documents does not re-call the embedding provider. A miss is
// returned as (nil, false, nil); cache failures are never fatal to ingestion.
type EmbeddingCache interface {
	// Get retrieves a cached vector for the given content hash
	Get(ctx context.Context, contentHash string) ([]float32, bool, error)

	// Set stores a vector for the given content hash with a TTL
	Set(ctx context.Context, contentHash string, vector []float32, ttl time.Duration) error

	// Ping checks if the cache backend is healthy
	Ping(ctx context.Context) error
}
