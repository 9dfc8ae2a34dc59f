package aigemini

import (
	"errors"

	"github.com/Abraxas-365/chatkeep/pkg/ai/providers/upstream"
	"github.com/Abraxas-365/chatkeep/pkg/errx"
	"google.golang.org/genai"
)

var (
	codes         = upstream.Register("GEMINI", "Gemini")
	errorRegistry = codes.Registry()

	ErrAPIResponse   = codes.Response
	ErrEmptyMessages = codes.EmptyMessages
	ErrMissingAPIKey = codes.MissingCredentials
)

var hints = upstream.Hints{
	Unauthorized:  []string{"unauthorized", "invalid api key", "permission denied", "api_key_invalid"},
	RateLimit:     []string{"rate limit", "resource exhausted", "resource_exhausted"},
	Quota:         []string{"quota"},
	ContextLength: []string{"too many tokens", "exceeds the maximum number of tokens"},
	ModelNotFound: []string{"not found", "is not supported for generatecontent"},
	Invalid:       []string{"invalid_argument"},
}

// ParseGeminiError maps a Gemini SDK error to an errx.Error. genai returns
// APIError by value.
func ParseGeminiError(err error) *errx.Error {
	status := 0
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.Code
	}
	return codes.Classify(err, status, hints)
}
