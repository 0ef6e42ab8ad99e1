package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var _ driven.EmbeddingCache = (*EmbeddingCache)(nil)

const embeddingKeyPrefix = "concatly:embedding:"

// DefaultEmbeddingTTL is how long cached vectors survive without being
// refreshed. Content hashes change whenever content changes, so stale
// entries are only ever orphans.
const DefaultEmbeddingTTL = 7 * 24 * time.Hour

// EmbeddingCache implements driven.EmbeddingCache using Redis.
// Vectors are stored as JSON arrays keyed by content hash and expire
// via Redis TTL.
type EmbeddingCache struct {
	client *redis.Client
}

// NewEmbeddingCache creates a new Redis-backed EmbeddingCache
func NewEmbeddingCache(client *redis.Client) *EmbeddingCache {
	return &EmbeddingCache{client: client}
}

// Get retrieves a cached vector for the given content hash
func (c *EmbeddingCache) Get(ctx context.Context, contentHash string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, embeddingKeyPrefix+contentHash).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get cached embedding: %w", err)
	}

	var vector []float32
	if err := json.Unmarshal(data, &vector); err != nil {
		// Corrupt entry; drop it and treat as a miss.
		c.client.Del(ctx, embeddingKeyPrefix+contentHash)
		return nil, false, nil
	}
	return vector, true, nil
}

// Set stores a vector for the given content hash with a TTL
func (c *EmbeddingCache) Set(ctx context.Context, contentHash string, vector []float32, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultEmbeddingTTL
	}

	data, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	if err := c.client.Set(ctx, embeddingKeyPrefix+contentHash, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache embedding: %w", err)
	}
	return nil
}

// Ping checks if the Redis backend is healthy
func (c *EmbeddingCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
