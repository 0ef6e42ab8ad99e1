package mocks

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
)

// MockAuthAdapter is a fake AuthAdapter for testing. Hashing is a reversible
// prefix and tokens are plain JSON, so tests stay fast and deterministic.
type MockAuthAdapter struct {
	// ExpireTokens makes ParseToken report every token as expired.
	ExpireTokens bool
}

// NewMockAuthAdapter creates a new MockAuthAdapter
func NewMockAuthAdapter() *MockAuthAdapter {
	return &MockAuthAdapter{}
}

func (m *MockAuthAdapter) HashSecret(secret string) (string, error) {
	return "hashed:" + secret, nil
}

func (m *MockAuthAdapter) VerifySecret(secret, hash string) bool {
	return hash == "hashed:"+secret
}

func (m *MockAuthAdapter) GenerateToken(claims *domain.TokenClaims) (string, error) {
	b, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	return "token:" + string(b), nil
}

func (m *MockAuthAdapter) ParseToken(token string) (*domain.TokenClaims, error) {
	raw, ok := strings.CutPrefix(token, "token:")
	if !ok {
		return nil, domain.ErrTokenInvalid
	}
	var claims domain.TokenClaims
	if err := json.Unmarshal([]byte(raw), &claims); err != nil {
		return nil, domain.ErrTokenInvalid
	}
	if m.ExpireTokens || (claims.ExpiresAt != 0 && claims.ExpiresAt < time.Now().Unix()) {
		return nil, domain.ErrTokenExpired
	}
	return &claims, nil
}
