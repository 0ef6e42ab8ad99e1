package domain

import "time"

// Tenant is an isolated organization. Documents, pairs, and merge operations
// belonging to one tenant are never visible to another.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TenantCredentials holds a tenant's content-repository connection settings.
// The API token is encrypted at rest and never serialized.
type TenantCredentials struct {
	TenantID  string    `json:"tenant_id"`
	BaseURL   string    `json:"base_url"`
	Username  string    `json:"username"`
	APIToken  string    `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsConfigured reports whether the credentials are complete enough to reach
// the content repository.
func (c *TenantCredentials) IsConfigured() bool {
	return c.BaseURL != "" && c.Username != "" && c.APIToken != ""
}
