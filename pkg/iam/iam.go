package iam

import (
	"net/http"

	"github.com/Abraxas-365/chatkeep/pkg/errx"
)

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("IAM")

var (
	CodeUnauthorized    = ErrRegistry.Register("UNAUTHORIZED", errx.TypeAuthorization, http.StatusUnauthorized, "Unauthorized")
	CodeInvalidToken    = ErrRegistry.Register("INVALID_TOKEN", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid or expired token")
	CodeAccessDenied    = ErrRegistry.Register("ACCESS_DENIED", errx.TypeAuthorization, http.StatusForbidden, "Access denied")
	CodeMissingIdentity = ErrRegistry.Register("MISSING_IDENTITY", errx.TypeValidation, http.StatusBadRequest, "X-User-ID header is required")
)

// Helper functions
func ErrUnauthorized() *errx.Error {
	return ErrRegistry.New(CodeUnauthorized)
}

func ErrInvalidToken() *errx.Error {
	return ErrRegistry.New(CodeInvalidToken)
}

func ErrAccessDenied() *errx.Error {
	return ErrRegistry.New(CodeAccessDenied)
}

func ErrMissingIdentity() *errx.Error {
	return ErrRegistry.New(CodeMissingIdentity)
}

// Header names callers use to identify themselves.
const (
	HeaderUserID        = "X-User-ID"
	HeaderAuthorization = "Authorization"
)
