package normalisers

import (
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry implements NormaliserRegistry with priority-based selection.
// When multiple normalisers match a MIME type, the highest priority one wins.
type Registry struct {
	mu          sync.RWMutex
	normalisers []driven.Normaliser
}

// NewRegistry creates an empty normaliser registry.
func NewRegistry() *Registry {
	return &Registry{
		normalisers: make([]driven.Normaliser, 0),
	}
}

// Register adds a normaliser to the registry.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.normalisers = append(r.normalisers, n)
}

// Get returns the best-matching normaliser for a MIME type, or nil when
// nothing is registered for it.
func (r *Registry) Get(mimeType string) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best driven.Normaliser
	for _, n := range r.normalisers {
		if !matchesMIMEType(n.SupportedTypes(), mimeType) {
			continue
		}
		if best == nil || n.Priority() > best.Priority() {
			best = n
		}
	}
	return best
}

// List returns all registered MIME types.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	typeSet := make(map[string]struct{})
	for _, n := range r.normalisers {
		for _, t := range n.SupportedTypes() {
			typeSet[t] = struct{}{}
		}
	}

	types := make([]string, 0, len(typeSet))
	for t := range typeSet {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// matchesMIMEType checks if any of the supported types match the given MIME
// type. Supports wildcard matching (e.g., "text/*" matches "text/plain").
func matchesMIMEType(supportedTypes []string, mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))

	// Strip charset and other parameters
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	for _, supported := range supportedTypes {
		supported = strings.ToLower(strings.TrimSpace(supported))

		if supported == mimeType || supported == "*/*" {
			return true
		}
		if strings.HasSuffix(supported, "/*") &&
			strings.HasPrefix(mimeType, supported[:len(supported)-1]) {
			return true
		}
	}
	return false
}

// DefaultRegistry creates a registry covering the formats the supported
// repositories deliver: Confluence storage-format XHTML, markdown, and a
// plain-text fallback.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&PlaintextNormaliser{})
	r.Register(&MarkdownNormaliser{})
	r.Register(&StorageFormatNormaliser{})
	return r
}
