package driven

// Normaliser converts repository-native markup into the plain text that gets
// embedded. Confluence pages arrive as storage-format XHTML; embedding the
// raw markup drags similarity scores toward shared boilerplate instead of
// shared meaning.
type Normaliser interface {
	// Normalise extracts embeddable plain text from content of the given
	// MIME type.
	Normalise(content string, mimeType string) string

	// SupportedTypes returns MIME types this normaliser handles.
	// Wildcards like "text/*" and "*/*" are allowed.
	SupportedTypes() []string

	// Priority breaks ties when multiple normalisers match a type.
	// Higher wins.
	Priority() int
}

// NormaliserRegistry selects a Normaliser for a MIME type
type NormaliserRegistry interface {
	// Register adds a normaliser to the registry.
	Register(n Normaliser)

	// Get returns the best-matching normaliser for a MIME type, or nil.
	Get(mimeType string) Normaliser

	// List returns all registered MIME types.
	List() []string
}
