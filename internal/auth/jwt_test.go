package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTokenRoundTrip(t *testing.T) {
	userUUID := uuid.New()
	token, err := GenerateToken(userUUID, "test-secret", 15*time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := ParseToken(token, "test-secret")
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserUUID != userUUID {
		t.Fatalf("expected user uuid %s, got %s", userUUID, claims.UserUUID)
	}
	if claims.Issuer != "corpchat" {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := GenerateToken(uuid.New(), "right-secret", 15*time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := ParseToken(token, "wrong-secret"); err == nil {
		t.Fatal("token signed with a different secret must not verify")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, err := GenerateToken(uuid.New(), "test-secret", -time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := ParseToken(token, "test-secret"); err == nil {
		t.Fatal("expired token must not verify")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	if _, err := ParseToken("not-a-jwt", "test-secret"); err == nil {
		t.Fatal("malformed token must not verify")
	}
}

func TestNewRefreshTokenIsOpaqueAndUnique(t *testing.T) {
	a, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}
	b, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}
	if a == b {
		t.Fatal("refresh tokens must be unique")
	}
	// 64 raw bytes in unpadded base64url.
	if len(a) != 86 {
		t.Fatalf("unexpected token length %d", len(a))
	}
}
