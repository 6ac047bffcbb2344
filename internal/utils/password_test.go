package utils

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", 10)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(hash, "s3cret-pass") {
		t.Error("correct password should verify")
	}
	if VerifyPassword(hash, "wrong-pass") {
		t.Error("wrong password should not verify")
	}
}

func TestHashPasswordCostFloor(t *testing.T) {
	// a configured cost below the floor is silently raised
	hash, err := HashPassword("pw", 4)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$10$") && !strings.HasPrefix(hash, "$2b$10$") {
		t.Errorf("expected cost 10 hash, got prefix %q", hash[:7])
	}
}
