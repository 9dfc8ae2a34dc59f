package chat

import (
	"net/http"

	"github.com/Abraxas-365/chatkeep/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("CHAT")

var (
	ErrConstructionFailed = ErrRegistry.Register("CONSTRUCTION_FAILED", errx.TypeExternal, http.StatusBadGateway, "Failed to prepare the model")
	ErrInvocationFailed   = ErrRegistry.Register("INVOCATION_FAILED", errx.TypeExternal, http.StatusBadGateway, "Model invocation failed")
	ErrInvalidRequest     = ErrRegistry.Register("INVALID_REQUEST", errx.TypeValidation, http.StatusBadRequest, "Invalid chat request")
	ErrUnknownVariant     = ErrRegistry.Register("UNKNOWN_VARIANT", errx.TypeValidation, http.StatusBadRequest, "Unsupported model type")
	ErrUnknownKind        = ErrRegistry.Register("UNKNOWN_KIND", errx.TypeValidation, http.StatusBadRequest, "Unsupported request kind")
	ErrSessionNotFound    = ErrRegistry.Register("SESSION_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Session not found")
	ErrArchiveDisabled    = ErrRegistry.Register("ARCHIVE_DISABLED", errx.TypeNotFound, http.StatusNotFound, "Transcript archiving is disabled")
)

// ConstructionError wraps a handle construction failure.
func ConstructionError(cause error, variant string) error {
	return ErrRegistry.NewWithCause(ErrConstructionFailed, cause).WithDetail("variant", variant)
}

// InvocationError wraps a model call failure.
func InvocationError(cause error, variant string) error {
	return ErrRegistry.NewWithCause(ErrInvocationFailed, cause).WithDetail("variant", variant)
}

// IsFallbackError reports whether err should be answered with the apology
// reply rather than an HTTP error.
func IsFallbackError(err error) bool {
	return ErrConstructionFailed.Is(err) || ErrInvocationFailed.Is(err)
}
