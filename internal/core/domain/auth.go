package domain

import "time"

// AuthContext contains the authenticated caller's identity for request context.
// Every request is scoped to exactly one tenant.
type AuthContext struct {
	TenantID string `json:"tenant_id"`
	Subject  string `json:"subject"` // API key id or automation principal
	IssuedAt int64  `json:"iat"`
}

// APIKey is a tenant-scoped credential for calling the API. The secret is
// bcrypt-hashed at rest; only the hash is stored.
type APIKey struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	SecretHash string     `json:"-"`
	Label      string     `json:"label"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// Revoked reports whether the key has been revoked.
func (k *APIKey) Revoked() bool {
	return k.RevokedAt != nil
}

// TokenClaims represents the JWT token payload
type TokenClaims struct {
	TenantID  string `json:"tenant_id"`
	Subject   string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}
