package domain

import "time"

// AIProvider identifies the AI/embedding provider
type AIProvider string

const (
	AIProviderOpenAI    AIProvider = "openai"
	AIProviderAnthropic AIProvider = "anthropic"
	AIProviderOllama    AIProvider = "ollama"
)

// RequiresAPIKey reports whether the provider needs an API key
func (p AIProvider) RequiresAPIKey() bool {
	return p != AIProviderOllama
}

// AISettings holds AI service configuration (embedding and merge drafting).
// This can be updated at runtime via API.
type AISettings struct {
	TenantID  string            `json:"tenant_id"`
	Embedding EmbeddingSettings `json:"embedding"`
	Drafter   DrafterSettings   `json:"drafter"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// EmbeddingSettings configures the embedding service
type EmbeddingSettings struct {
	Provider AIProvider `json:"provider"`
	Model    string     `json:"model"`
	APIKey   string     `json:"-"` // Never serialize to JSON
	BaseURL  string     `json:"base_url,omitempty"`
}

// IsConfigured returns true if embedding settings are properly configured
func (e *EmbeddingSettings) IsConfigured() bool {
	if e.Provider == "" {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// DrafterSettings configures the merge-authoring service
type DrafterSettings struct {
	Provider AIProvider `json:"provider"`
	Model    string     `json:"model"`
	APIKey   string     `json:"-"` // Never serialize to JSON
	BaseURL  string     `json:"base_url,omitempty"`
}

// IsConfigured returns true if drafter settings are properly configured
func (d *DrafterSettings) IsConfigured() bool {
	if d.Provider == "" {
		return false
	}
	if d.Provider.RequiresAPIKey() && d.APIKey == "" {
		return false
	}
	return true
}

// DefaultEmbeddingSettings returns defaults matching the hosted product
func DefaultEmbeddingSettings(apiKey string) EmbeddingSettings {
	return EmbeddingSettings{
		Provider: AIProviderOpenAI,
		Model:    "text-embedding-3-small",
		APIKey:   apiKey,
	}
}

// DefaultDrafterSettings returns defaults matching the hosted product
func DefaultDrafterSettings(apiKey string) DrafterSettings {
	return DrafterSettings{
		Provider: AIProviderOpenAI,
		Model:    "gpt-4o",
		APIKey:   apiKey,
	}
}

// PairingDefaults holds tenant-level defaults for duplicate detection.
type PairingDefaults struct {
	// SimilarityThreshold is the default θ for candidate pairs
	SimilarityThreshold float64 `json:"similarity_threshold"`

	// NeighborsPerDocument is k for the nearest-neighbor query
	NeighborsPerDocument int `json:"neighbors_per_document"`

	// MinContentLength excludes near-empty pages from pairing
	MinContentLength int `json:"min_content_length"`
}

// DefaultPairingDefaults returns the thresholds the original product shipped with
func DefaultPairingDefaults() PairingDefaults {
	return PairingDefaults{
		SimilarityThreshold:  0.65,
		NeighborsPerDocument: 10,
		MinContentLength:     50,
	}
}
