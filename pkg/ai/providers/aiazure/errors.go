package aiazure

import (
	"errors"
	"net/http"

	"github.com/Abraxas-365/chatkeep/pkg/ai/providers/upstream"
	"github.com/Abraxas-365/chatkeep/pkg/errx"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/openai/openai-go/v3"
)

var (
	codes         = upstream.Register("AZURE_OPENAI", "Azure OpenAI")
	errorRegistry = codes.Registry()

	ErrMissingCredentials = codes.MissingCredentials

	ErrMissingEndpoint = errorRegistry.Register(
		"MISSING_ENDPOINT",
		errx.TypeValidation,
		http.StatusBadRequest,
		"Azure OpenAI endpoint not provided",
	)

	ErrMissingDeployment = errorRegistry.Register(
		"MISSING_DEPLOYMENT",
		errx.TypeValidation,
		http.StatusBadRequest,
		"No deployment configured and none named on the request",
	)
)

var hints = upstream.Hints{
	Unauthorized:  []string{"unauthorized", "invalid api key", "access denied"},
	RateLimit:     []string{"rate limit", "rate_limit", "429"},
	Quota:         []string{"insufficient_quota", "quota"},
	ContextLength: []string{"context length", "maximum context"},
	ModelNotFound: []string{"deploymentnotfound", "deployment"},
}

// ParseAzureError maps an Azure OpenAI error to an errx.Error. Completion
// failures arrive as openai.Error; AAD token failures surface from azcore.
func ParseAzureError(err error) *errx.Error {
	status := 0
	var apiErr *openai.Error
	var respErr *azcore.ResponseError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.StatusCode
	case errors.As(err, &respErr):
		status = respErr.StatusCode
	}
	return codes.Classify(err, status, hints)
}
