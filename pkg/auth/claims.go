// Package auth supplies bearer tokens to the backend client.
// Tokens are stored elsewhere; this package only reads them and rejects
// tokens that are absent or visibly expired before any request is made.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the subset of JWT claims the ingestion client reads.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp, etc.).
type Claims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"` // User email address
	Roles []string `json:"roles,omitempty"` // User roles, e.g. "researcher"
}

// ParseUnverified parses a JWT without verifying the signature.
// The backend verifies; the client only inspects expiry and subject.
func ParseUnverified(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}

	return claims, nil
}

// Expired reports whether the claims carry an exp in the past relative to now.
// Tokens without exp never expire from the client's point of view.
func (c *Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Before(c.ExpiresAt.Time)
}
