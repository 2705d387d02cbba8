// Package auth issues and validates the HMAC-signed bearer tokens that
// guard the task API. Tokens identify an API client by subject; there are
// no user accounts.
package auth

import (
	"context"
	"time"
)

// JWTService signs and validates API tokens.
type JWTService interface {
	// GenerateToken creates a signed token for subject that expires after lifetime.
	GenerateToken(ctx context.Context, subject string, lifetime time.Duration) (string, error)

	// ValidateToken checks the signature and time claims of a token and
	// returns its claims.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims are the validated contents of a token.
type Claims struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
}
