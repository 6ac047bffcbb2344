package utils

import (
	"testing"
	"time"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := NewAccessToken("secret", 42, "DOCTOR", 60)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tok.Token == "" {
		t.Fatal("empty token")
	}
	if time.Until(tok.Exp) <= 0 {
		t.Fatal("expiry not in the future")
	}

	ident, err := VerifyAccessToken("secret", tok.Token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ident.UserID != 42 || ident.Role != "DOCTOR" {
		t.Errorf("identity = %+v, want {42 DOCTOR}", ident)
	}
}

func TestVerifyAccessTokenWrongSecret(t *testing.T) {
	tok, err := NewAccessToken("secret", 1, "PATIENT", 60)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := VerifyAccessToken("other-secret", tok.Token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyAccessTokenExpired(t *testing.T) {
	tok, err := NewAccessToken("secret", 1, "PATIENT", -1) // already expired
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := VerifyAccessToken("secret", tok.Token); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerifyAccessTokenGarbage(t *testing.T) {
	if _, err := VerifyAccessToken("secret", "not-a-jwt"); err != ErrInvalidToken {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewRefreshSecret(t *testing.T) {
	a, err := NewRefreshSecret(7)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(a.Raw) != 96 { // 48 bytes hex encoded
		t.Errorf("raw length = %d, want 96", len(a.Raw))
	}
	b, err := NewRefreshSecret(7)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if a.Raw == b.Raw {
		t.Error("two secrets should never collide")
	}
}

func TestHashRefreshRaw(t *testing.T) {
	h1 := HashRefreshRaw("value")
	h2 := HashRefreshRaw("value")
	if h1 != h2 {
		t.Error("hash must be deterministic")
	}
	if len(h1) != 64 { // sha256 hex
		t.Errorf("hash length = %d, want 64", len(h1))
	}
	if HashRefreshRaw("other") == h1 {
		t.Error("distinct inputs should not collide")
	}
}
