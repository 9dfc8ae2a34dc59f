package auth

import (
	"context"
	"time"
)

// TokenService defines the contract for JWT token management
type TokenService interface {
	GenerateAccessToken(subject string, scopes []string, ttl time.Duration) (string, error)
	ValidateAccessToken(token string) (*TokenClaims, error)
}

// AuditService records authentication events
type AuditService interface {
	LogTokenIssued(ctx context.Context, subject string, scopes []string, expiresAt time.Time)
	LogAuthFailure(ctx context.Context, reason string, ip string, userAgent string)
}
