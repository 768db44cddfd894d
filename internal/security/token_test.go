package security

import (
	"testing"
	"time"

	"chatbot-api/internal/config"
)

func TestIssueAndParseUserToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}

	signed, err := IssueUserToken(cfg, 42, "user@example.com")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	userID, email, errParse := ParseUserToken(cfg, signed)
	if errParse != nil {
		t.Fatalf("parse token: %v", errParse)
	}
	if userID != 42 {
		t.Fatalf("expected user id 42, got %d", userID)
	}
	if email != "user@example.com" {
		t.Fatalf("expected email, got %q", email)
	}
}

func TestParseUserToken_WrongSecret(t *testing.T) {
	cfg := config.JWTConfig{Secret: "test-secret", Expiry: time.Hour}
	signed, err := IssueUserToken(cfg, 7, "user@example.com")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	other := config.JWTConfig{Secret: "other-secret", Expiry: time.Hour}
	if _, _, errParse := ParseUserToken(other, signed); errParse == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestParseUserToken_Expired(t *testing.T) {
	cfg := config.JWTConfig{Secret: "test-secret", Expiry: -time.Minute}
	signed, err := IssueUserToken(cfg, 7, "user@example.com")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, _, errParse := ParseUserToken(cfg, signed); errParse == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hashed, err := HashPassword("hunter2xx")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hashed == "hunter2xx" {
		t.Fatal("hash should not equal plaintext")
	}
	if !VerifyPassword(hashed, "hunter2xx") {
		t.Fatal("expected password to verify")
	}
	if VerifyPassword(hashed, "wrong") {
		t.Fatal("expected wrong password to fail")
	}
}
