package aibedrock

import (
	"errors"

	"github.com/Abraxas-365/chatkeep/pkg/ai/providers/upstream"
	"github.com/Abraxas-365/chatkeep/pkg/errx"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
)

var (
	codes         = upstream.Register("BEDROCK", "Bedrock")
	errorRegistry = codes.Registry()

	ErrAPIResponse        = codes.Response
	ErrEmptyMessages      = codes.EmptyMessages
	ErrUnsupportedRole    = codes.UnsupportedRole
	ErrMissingCredentials = codes.MissingCredentials
)

// Bedrock reports failures as typed exceptions whose names end up in the
// message, e.g. ThrottlingException or AccessDeniedException.
var hints = upstream.Hints{
	Unauthorized:  []string{"accessdenied", "access denied", "unrecognizedclient", "credentials"},
	RateLimit:     []string{"throttl", "too many requests"},
	Quota:         []string{"servicequotaexceeded"},
	ContextLength: []string{"input is too long", "too many tokens", "context window"},
	ModelNotFound: []string{"resourcenotfound", "model identifier is invalid"},
	Invalid:       []string{"validationexception"},
}

// ParseBedrockError maps an AWS Bedrock error to an errx.Error
func ParseBedrockError(err error) *errx.Error {
	status := 0
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status = respErr.HTTPStatusCode()
	}
	return codes.Classify(err, status, hints)
}
