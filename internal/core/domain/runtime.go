package domain

import "sync"

// RuntimeConfig tracks which services are available at runtime.
// This is determined at startup and can be updated dynamically for AI services.
// Thread-safe for concurrent access.
type RuntimeConfig struct {
	mu sync.RWMutex

	// Static (set at startup, read-only)
	QueueBackend string // "redis" or "postgres"

	// Dynamic capability flags (updated when AI services change)
	embeddingAvailable bool
	drafterAvailable   bool
}

// NewRuntimeConfig creates a new RuntimeConfig with initial values
func NewRuntimeConfig(queueBackend string) *RuntimeConfig {
	return &RuntimeConfig{
		QueueBackend: queueBackend,
	}
}

// EmbeddingAvailable returns whether the embedding service is available
func (c *RuntimeConfig) EmbeddingAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.embeddingAvailable
}

// DrafterAvailable returns whether the merge-authoring service is available
func (c *RuntimeConfig) DrafterAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.drafterAvailable
}

// SetEmbeddingAvailable updates the embedding availability flag
func (c *RuntimeConfig) SetEmbeddingAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embeddingAvailable = available
}

// SetDrafterAvailable updates the drafter availability flag
func (c *RuntimeConfig) SetDrafterAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drafterAvailable = available
}

// CanDetectDuplicates returns true if duplicate pairing is possible
func (c *RuntimeConfig) CanDetectDuplicates() bool {
	return c.EmbeddingAvailable()
}

// CanDraftMerges returns true if AI merge drafting is possible
func (c *RuntimeConfig) CanDraftMerges() bool {
	return c.DrafterAvailable()
}
