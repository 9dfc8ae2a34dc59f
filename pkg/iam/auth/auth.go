package auth

import (
	"net/http"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/errx"
)

// TokenClaims represents validated JWT claims
type TokenClaims struct {
	Subject   string    `json:"sub"`
	Scopes    []string  `json:"scopes"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("AUTH")

var (
	CodeTokenGenerationFailed = ErrRegistry.Register("TOKEN_GENERATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Token generation failed")
	CodeTokenValidationFailed = ErrRegistry.Register("TOKEN_VALIDATION_FAILED", errx.TypeAuthorization, http.StatusUnauthorized, "Token validation failed")
	CodeMissingSecret         = ErrRegistry.Register("MISSING_SECRET", errx.TypeValidation, http.StatusBadRequest, "JWT secret is not configured")
)

func ErrTokenGenerationFailed() *errx.Error {
	return ErrRegistry.New(CodeTokenGenerationFailed)
}

func ErrTokenValidationFailed() *errx.Error {
	return ErrRegistry.New(CodeTokenValidationFailed)
}

func ErrMissingSecret() *errx.Error {
	return ErrRegistry.New(CodeMissingSecret)
}
