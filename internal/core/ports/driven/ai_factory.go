package driven

import "github.com/custodia-labs/concatly-core/internal/core/domain"

// AIServiceFactory creates AI services from settings
type AIServiceFactory interface {
	// CreateEmbeddingService creates an embedding service from settings.
	// Returns nil, nil if settings are not configured.
	CreateEmbeddingService(settings *domain.EmbeddingSettings) (EmbeddingService, error)

	// CreateMergeDrafter creates a merge-authoring service from settings.
	// Returns nil, nil if settings are not configured.
	CreateMergeDrafter(settings *domain.DrafterSettings) (MergeDrafter, error)
}
