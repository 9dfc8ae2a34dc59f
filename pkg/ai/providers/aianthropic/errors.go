package aianthropic

import (
	"errors"

	"github.com/Abraxas-365/chatkeep/pkg/ai/providers/upstream"
	"github.com/Abraxas-365/chatkeep/pkg/errx"
	"github.com/anthropics/anthropic-sdk-go"
)

var (
	codes         = upstream.Register("ANTHROPIC", "Anthropic")
	errorRegistry = codes.Registry()

	ErrEmptyMessages   = codes.EmptyMessages
	ErrUnsupportedRole = codes.UnsupportedRole
	ErrMissingAPIKey   = codes.MissingCredentials
)

var hints = upstream.Hints{
	Unauthorized:  []string{"unauthorized", "invalid x-api-key", "authentication"},
	RateLimit:     []string{"rate limit", "rate_limit"},
	Quota:         []string{"quota", "overloaded"},
	ContextLength: []string{"context length", "too many tokens", "prompt is too long"},
	ModelNotFound: []string{"not_found_error", "model:"},
}

// ParseAnthropicError maps an Anthropic SDK error to an errx.Error
func ParseAnthropicError(err error) *errx.Error {
	status := 0
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		status = apiErr.StatusCode
	}
	return codes.Classify(err, status, hints)
}
