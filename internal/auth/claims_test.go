package auth

import (
	"errors"
	"testing"
)

const testSecret = "test-secret-key-at-least-32-chars!"

func TestAccessTokenRoundTrip(t *testing.T) {
	user := &User{ID: "100", DisplayName: "Alice", Roles: []Role{RoleUser, RoleAdmin}}

	signed, err := GenerateAccessToken(user, "opaque-session-token", testSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := ParseToken(signed, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "100" {
		t.Errorf("subject = %q, want 100", claims.Subject)
	}
	if claims.SessionID != "opaque-session-token" {
		t.Errorf("session id = %q, want bound session token", claims.SessionID)
	}
	if len(claims.Roles) != 2 {
		t.Errorf("roles = %v, want both roles carried", claims.Roles)
	}
}

func TestParseToken_WrongSecret(t *testing.T) {
	user := &User{ID: "100", Roles: []Role{RoleUser}}
	signed, _ := GenerateAccessToken(user, "sid", testSecret, 15)

	if _, err := ParseToken(signed, "another-secret-also-32-characters!"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken(wrong secret) error = %v, want ErrTokenInvalid", err)
	}
}

func TestParseToken_Garbage(t *testing.T) {
	if _, err := ParseToken("not.a.jwt", testSecret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken(garbage) error = %v, want ErrTokenInvalid", err)
	}
}
