package driven

import "github.com/custodia-labs/concatly-core/internal/core/domain"

// AuthAdapter handles authentication cryptographic operations.
// Storage of API keys lives in the stores; this only hashes and signs.
type AuthAdapter interface {
	// API key secret operations
	HashSecret(secret string) (string, error)
	VerifySecret(secret, hash string) bool

	// Token operations
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}
