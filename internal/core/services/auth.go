package services

import (
	"context"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driving"
)

// Ensure authService implements AuthService
var _ driving.AuthService = (*authService)(nil)

// authService implements the AuthService interface
type authService struct {
	apiKeyStore driven.APIKeyStore
	authAdapter driven.AuthAdapter
	tokenTTL    time.Duration
}

// NewAuthService creates a new AuthService
func NewAuthService(apiKeyStore driven.APIKeyStore, authAdapter driven.AuthAdapter) driving.AuthService {
	return &authService{
		apiKeyStore: apiKeyStore,
		authAdapter: authAdapter,
		tokenTTL:    24 * time.Hour,
	}
}

// ValidateToken parses a bearer token and returns the caller's context
func (s *authService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	if token == "" {
		return nil, domain.ErrTokenInvalid
	}

	claims, err := s.authAdapter.ParseToken(token)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > claims.ExpiresAt {
		return nil, domain.ErrTokenExpired
	}
	if claims.TenantID == "" {
		return nil, domain.ErrTokenInvalid
	}

	return &domain.AuthContext{
		TenantID: claims.TenantID,
		Subject:  claims.Subject,
		IssuedAt: claims.IssuedAt,
	}, nil
}

// IssueToken exchanges a tenant API key for a signed bearer token
func (s *authService) IssueToken(ctx context.Context, tenantID, keyID, secret string) (string, error) {
	if tenantID == "" || keyID == "" || secret == "" {
		return "", domain.ErrInvalidInput
	}

	key, err := s.apiKeyStore.Get(ctx, tenantID, keyID)
	if err != nil {
		return "", domain.ErrUnauthorized
	}
	if key.Revoked() {
		return "", domain.ErrUnauthorized
	}
	if !s.authAdapter.VerifySecret(secret, key.SecretHash) {
		return "", domain.ErrUnauthorized
	}

	now := time.Now()
	claims := &domain.TokenClaims{
		TenantID:  tenantID,
		Subject:   keyID,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(s.tokenTTL).Unix(),
	}
	return s.authAdapter.GenerateToken(claims)
}
