// Package upstream holds the error vocabulary shared by the hosted model
// providers. Each provider registers its own prefixed copy of the codes and
// supplies the message fragments its vendor uses, so callers can match on
// a code like OPENAI_API_RATE_LIMIT without knowing the SDK error types.
package upstream

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Abraxas-365/chatkeep/pkg/errx"
)

// Codes is one provider's registered error set.
type Codes struct {
	registry *errx.Registry

	Request            *errx.ErrorCode
	Response           *errx.ErrorCode
	Unauthorized       *errx.ErrorCode
	RateLimit          *errx.ErrorCode
	Quota              *errx.ErrorCode
	ModelNotFound      *errx.ErrorCode
	ContextLength      *errx.ErrorCode
	InvalidRequest     *errx.ErrorCode
	EmptyMessages      *errx.ErrorCode
	InvalidMessage     *errx.ErrorCode
	UnsupportedRole    *errx.ErrorCode
	MissingCredentials *errx.ErrorCode
}

// Register creates the code set under prefix. vendor is used in messages.
func Register(prefix, vendor string) *Codes {
	r := errx.NewRegistry(prefix)
	return &Codes{
		registry:           r,
		Request:            r.Register("API_REQUEST_FAILED", errx.TypeExternal, http.StatusBadGateway, fmt.Sprintf("Request to %s failed", vendor)),
		Response:           r.Register("API_RESPONSE_INVALID", errx.TypeExternal, http.StatusBadGateway, fmt.Sprintf("%s returned an unusable response", vendor)),
		Unauthorized:       r.Register("API_UNAUTHORIZED", errx.TypeAuthorization, http.StatusUnauthorized, fmt.Sprintf("%s rejected the configured credentials", vendor)),
		RateLimit:          r.Register("API_RATE_LIMIT", errx.TypeExternal, http.StatusTooManyRequests, fmt.Sprintf("%s rate limit exceeded", vendor)),
		Quota:              r.Register("API_QUOTA_EXCEEDED", errx.TypeExternal, http.StatusForbidden, fmt.Sprintf("%s quota exhausted", vendor)),
		ModelNotFound:      r.Register("MODEL_NOT_FOUND", errx.TypeValidation, http.StatusNotFound, "Model not found or not accessible"),
		ContextLength:      r.Register("CONTEXT_LENGTH_EXCEEDED", errx.TypeValidation, http.StatusBadRequest, "Conversation exceeds the model context window"),
		InvalidRequest:     r.Register("INVALID_REQUEST", errx.TypeValidation, http.StatusBadRequest, "Request rejected as invalid"),
		EmptyMessages:      r.Register("EMPTY_MESSAGES", errx.TypeValidation, http.StatusBadRequest, "No messages to send"),
		InvalidMessage:     r.Register("INVALID_MESSAGE", errx.TypeValidation, http.StatusBadRequest, "Message could not be converted"),
		UnsupportedRole:    r.Register("UNSUPPORTED_ROLE", errx.TypeValidation, http.StatusBadRequest, "Unsupported message role"),
		MissingCredentials: r.Register("MISSING_CREDENTIALS", errx.TypeValidation, http.StatusBadRequest, fmt.Sprintf("%s credentials not configured", vendor)),
	}
}

// Registry exposes the underlying registry for provider-specific codes.
func (c *Codes) Registry() *errx.Registry { return c.registry }

func (c *Codes) New(code *errx.ErrorCode) *errx.Error { return c.registry.New(code) }

// Wrap attaches code to err unless err already carries a registered code.
func (c *Codes) Wrap(err error, code *errx.ErrorCode) *errx.Error {
	if err == nil {
		return nil
	}
	var existing *errx.Error
	if errx.As(err, &existing) {
		return existing
	}
	return c.registry.NewWithCause(code, err)
}

// Hints lists lowercase message fragments per failure class. They are
// consulted only when no HTTP status is available.
type Hints struct {
	Unauthorized  []string
	RateLimit     []string
	Quota         []string
	ModelNotFound []string
	ContextLength []string
	Invalid       []string
}

// Classify maps a provider failure to a registered code. status is the HTTP
// status reported by the SDK, or 0 when unknown.
func (c *Codes) Classify(err error, status int, hints Hints) *errx.Error {
	if err == nil {
		return nil
	}
	var existing *errx.Error
	if errx.As(err, &existing) {
		return existing
	}

	msg := strings.ToLower(err.Error())
	code := c.byStatus(status, msg)
	if code == nil {
		code = c.byMessage(msg, hints)
	}

	out := c.registry.NewWithCause(code, err)
	if status != 0 {
		out = out.WithDetail("status_code", status)
	}
	return out
}

func (c *Codes) byStatus(status int, msg string) *errx.ErrorCode {
	switch {
	case status == 0:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return c.Unauthorized
	case status == http.StatusTooManyRequests:
		return c.RateLimit
	case status == http.StatusNotFound:
		return c.ModelNotFound
	case status == http.StatusBadRequest:
		if strings.Contains(msg, "context") || strings.Contains(msg, "too many tokens") {
			return c.ContextLength
		}
		return c.InvalidRequest
	case status >= 500:
		return c.Response
	}
	return c.Request
}

func (c *Codes) byMessage(msg string, hints Hints) *errx.ErrorCode {
	ordered := []struct {
		fragments []string
		code      *errx.ErrorCode
	}{
		{hints.Unauthorized, c.Unauthorized},
		{hints.RateLimit, c.RateLimit},
		{hints.Quota, c.Quota},
		{hints.ContextLength, c.ContextLength},
		{hints.ModelNotFound, c.ModelNotFound},
		{hints.Invalid, c.InvalidRequest},
	}
	for _, o := range ordered {
		for _, f := range o.fragments {
			if strings.Contains(msg, f) {
				return o.code
			}
		}
	}
	return c.Request
}
