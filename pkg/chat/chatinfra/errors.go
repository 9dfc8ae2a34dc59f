package chatinfra

import (
	"net/http"

	"github.com/Abraxas-365/chatkeep/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("MODEL")

var (
	ErrMissingCredentials = ErrRegistry.Register("MISSING_CREDENTIALS", errx.TypeExternal, http.StatusBadGateway, "API key not configured")
	ErrUnsupportedVariant = ErrRegistry.Register("UNSUPPORTED_VARIANT", errx.TypeValidation, http.StatusBadRequest, "Unsupported model type")
	ErrClientInit         = ErrRegistry.Register("CLIENT_INIT_FAILED", errx.TypeExternal, http.StatusBadGateway, "Failed to initialize model client")
)

var TranscriptErrRegistry = errx.NewRegistry("TRANSCRIPT")

var (
	ErrTranscriptSave = TranscriptErrRegistry.Register("SAVE_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Failed to archive exchange")
	ErrTranscriptList = TranscriptErrRegistry.Register("LIST_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Failed to list exchanges")
)

func missingCredentials(variant, setting string) error {
	return ErrRegistry.New(ErrMissingCredentials).
		WithDetail("variant", variant).
		WithDetail("setting", setting)
}
