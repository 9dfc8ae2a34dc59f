package aiopenai

import (
	"errors"

	"github.com/Abraxas-365/chatkeep/pkg/ai/providers/upstream"
	"github.com/Abraxas-365/chatkeep/pkg/errx"
	"github.com/openai/openai-go/v3"
)

var (
	codes         = upstream.Register("OPENAI", "OpenAI")
	errorRegistry = codes.Registry()

	ErrAPIUnauthorized = codes.Unauthorized
	ErrEmptyMessages   = codes.EmptyMessages
	ErrUnsupportedRole = codes.UnsupportedRole
	ErrMissingAPIKey   = codes.MissingCredentials
)

// Compatible servers (DashScope, Ollama) reuse the OpenAI error envelope,
// so the same hints cover them.
var hints = upstream.Hints{
	Unauthorized:  []string{"unauthorized", "api key", "invalid_api_key"},
	RateLimit:     []string{"rate limit", "rate_limit"},
	Quota:         []string{"insufficient_quota"},
	ContextLength: []string{"context length", "maximum context"},
	ModelNotFound: []string{"model_not_found", "does not exist"},
}

// ParseOpenAIError classifies an error returned by the SDK.
func ParseOpenAIError(err error) *errx.Error {
	status := 0
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
	}
	return codes.Classify(err, status, hints)
}
