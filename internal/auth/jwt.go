package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is how long a profile token stays valid
const TokenTTL = 7 * 24 * time.Hour

// JWTClaims represents the claims in our JWT token
type JWTClaims struct {
	ProfileID string `json:"profile_id"`
	jwt.RegisteredClaims
}

// Issuer signs and validates profile tokens with a shared HS256 secret
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer creates an Issuer. The secret must not be empty.
func NewIssuer(secret string) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Issuer{secret: []byte(secret), now: time.Now}, nil
}

// GenerateProfileToken generates a JWT token for a profile
func (i *Issuer) GenerateProfileToken(profileID string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(TokenTTL)
	claims := &JWTClaims{
		ProfileID: profileID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profileID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a JWT token and returns the claims
func (i *Issuer) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid && claims.ProfileID != "" {
		return claims, nil
	}

	return nil, jwt.ErrTokenInvalidClaims
}
