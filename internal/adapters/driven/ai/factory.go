package ai

import (
	"fmt"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
)

// Ensure Factory implements AIServiceFactory
var _ driven.AIServiceFactory = (*Factory)(nil)

// Factory creates AI services based on configuration
type Factory struct{}

// NewFactory creates a new AI service factory
func NewFactory() *Factory {
	return &Factory{}
}

// CreateEmbeddingService creates an embedding service from settings
func (f *Factory) CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOpenAI:
		return NewOpenAIEmbedding(settings.APIKey, settings.Model, settings.BaseURL)
	case domain.AIProviderOllama:
		return nil, fmt.Errorf("ollama embedding adapter not supported yet")
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
}

// CreateMergeDrafter creates a merge-authoring service from settings
func (f *Factory) CreateMergeDrafter(settings *domain.DrafterSettings) (driven.MergeDrafter, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOpenAI:
		return NewOpenAIDrafter(settings.APIKey, settings.Model, settings.BaseURL)
	case domain.AIProviderAnthropic:
		return nil, fmt.Errorf("anthropic drafter adapter not supported yet")
	case domain.AIProviderOllama:
		return nil, fmt.Errorf("ollama drafter adapter not supported yet")
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}
}
