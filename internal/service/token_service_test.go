package service

import (
	"errors"
	"testing"
	"time"
)

func TestTokenServiceIssueAndValidate(t *testing.T) {
	svc := NewTokenService("secret", time.Hour)

	token, expiresAt, err := svc.Issue(42, "alice")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	claims, err := svc.Validate(token)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" || claims.Subject != "42" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenServiceRejectsForeignAndExpiredTokens(t *testing.T) {
	issuer := NewTokenService("secret", time.Hour)
	token, _, err := issuer.Issue(1, "bob")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	other := NewTokenService("another-secret", time.Hour)
	if _, err := other.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}

	issuer.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := issuer.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}

	if _, err := issuer.Validate("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for garbage, got %v", err)
	}
}

func TestTokenServiceRequiresSecret(t *testing.T) {
	svc := NewTokenService("  ", 0)
	if _, _, err := svc.Issue(1, "x"); !errors.Is(err, ErrTokenSecretMissing) {
		t.Fatalf("expected ErrTokenSecretMissing, got %v", err)
	}
}
