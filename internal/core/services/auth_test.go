package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/concatly-core/internal/core/domain"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/concatly-core/internal/core/ports/driving"
)

func newAuthEnv(t *testing.T) (driving.AuthService, *mocks.MockAPIKeyStore, *mocks.MockAuthAdapter) {
	t.Helper()
	keys := mocks.NewMockAPIKeyStore()
	adapter := mocks.NewMockAuthAdapter()

	hash, _ := adapter.HashSecret("key-secret")
	_ = keys.Save(context.Background(), &domain.APIKey{
		ID:         "key-1",
		TenantID:   testTenant,
		SecretHash: hash,
		Label:      "automation",
		CreatedAt:  time.Now(),
	})
	return NewAuthService(keys, adapter), keys, adapter
}

func TestAuthService_IssueAndValidate(t *testing.T) {
	svc, _, _ := newAuthEnv(t)

	token, err := svc.IssueToken(context.Background(), testTenant, "key-1", "key-secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}

	authCtx, err := svc.ValidateToken(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if authCtx.TenantID != testTenant || authCtx.Subject != "key-1" {
		t.Errorf("unexpected auth context: %+v", authCtx)
	}
}

func TestAuthService_IssueToken_WrongSecret(t *testing.T) {
	svc, _, _ := newAuthEnv(t)
	_, err := svc.IssueToken(context.Background(), testTenant, "key-1", "guess")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthService_IssueToken_RevokedKey(t *testing.T) {
	svc, keys, _ := newAuthEnv(t)
	_ = keys.Revoke(context.Background(), testTenant, "key-1")

	_, err := svc.IssueToken(context.Background(), testTenant, "key-1", "key-secret")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthService_IssueToken_WrongTenant(t *testing.T) {
	svc, _, _ := newAuthEnv(t)
	_, err := svc.IssueToken(context.Background(), "tenant-b", "key-1", "key-secret")
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthService_ValidateToken_Invalid(t *testing.T) {
	svc, _, _ := newAuthEnv(t)
	if _, err := svc.ValidateToken(context.Background(), ""); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for empty token, got %v", err)
	}
	if _, err := svc.ValidateToken(context.Background(), "garbage"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid for malformed token, got %v", err)
	}
}

func TestAuthService_ValidateToken_Expired(t *testing.T) {
	svc, _, adapter := newAuthEnv(t)
	token, err := svc.IssueToken(context.Background(), testTenant, "key-1", "key-secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	adapter.ExpireTokens = true

	if _, err := svc.ValidateToken(context.Background(), token); !errors.Is(err, domain.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}
