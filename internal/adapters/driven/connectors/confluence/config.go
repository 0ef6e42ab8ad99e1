package confluence

import "time"

// Config contains configuration for the Confluence connector.
type Config struct {
	// BaseURL is the site base URL, e.g. https://example.atlassian.net/wiki
	BaseURL string

	// Username is the account email used for basic auth.
	Username string

	// APIToken is the Atlassian API token paired with Username.
	APIToken string

	// PerPage is the number of items to fetch per page. Maximum is 100.
	PerPage int

	// MaxRetries is the maximum number of retry attempts for rate-limited
	// or server-erroring requests.
	MaxRetries int

	// Timeout for HTTP requests.
	Timeout time.Duration
}

// DefaultConfig returns the default Confluence connector configuration.
func DefaultConfig() *Config {
	return &Config{
		PerPage:    50,
		MaxRetries: 3,
		Timeout:    30 * time.Second,
	}
}
