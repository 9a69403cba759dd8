package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAndValidate(t *testing.T) {
	issuer, err := NewIssuer("test-secret")
	if err != nil {
		t.Fatalf("Failed to create issuer: %v", err)
	}

	token, expiresAt, err := issuer.GenerateProfileToken("profile-1")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	if time.Until(expiresAt) < TokenTTL-time.Minute {
		t.Errorf("Expected expiry about 7 days out, got %v", expiresAt)
	}

	claims, err := issuer.ValidateToken(token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if claims.ProfileID != "profile-1" {
		t.Errorf("Expected profile-1, got %s", claims.ProfileID)
	}
}

func TestValidateRejectsOtherSecret(t *testing.T) {
	a, _ := NewIssuer("secret-a")
	b, _ := NewIssuer("secret-b")

	token, _, _ := a.GenerateProfileToken("profile-1")
	if _, err := b.ValidateToken(token); err == nil {
		t.Error("Expected token signed with another secret to be rejected")
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	issuer, _ := NewIssuer("test-secret")
	issuer.now = func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) }
	token, _, _ := issuer.GenerateProfileToken("profile-1")

	issuer.now = time.Now
	if _, err := issuer.ValidateToken(token); err == nil {
		t.Error("Expected expired token to be rejected")
	}
}

func TestValidateRequiresProfileID(t *testing.T) {
	issuer, _ := NewIssuer("test-secret")
	claims := &JWTClaims{RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))

	if _, err := issuer.ValidateToken(token); err == nil {
		t.Error("Expected token without profile id to be rejected")
	}
}

func TestNewIssuerRequiresSecret(t *testing.T) {
	if _, err := NewIssuer(""); err == nil {
		t.Error("Expected empty secret to be rejected")
	}
}
