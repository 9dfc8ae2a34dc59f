package aiazure

import (
	"context"
	"os"

	"github.com/Abraxas-365/chatkeep/pkg/ai/llm"
	"github.com/Abraxas-365/chatkeep/pkg/ai/providers/aiopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/azure"
	"github.com/openai/openai-go/v3/option"
)

const defaultAPIVersion = "2024-06-01"

// ProviderOption configures the Azure OpenAI provider
type ProviderOption func(*AzureOpenAIProvider)

// WithAPIVersion overrides the api-version query parameter.
func WithAPIVersion(version string) ProviderOption {
	return func(p *AzureOpenAIProvider) {
		if version != "" {
			p.apiVersion = version
		}
	}
}

// WithAzureADCredential authenticates with Entra ID instead of an api key.
func WithAzureADCredential(cred azcore.TokenCredential) ProviderOption {
	return func(p *AzureOpenAIProvider) { p.credential = cred }
}

// WithDeployment sets the deployment used when a request names no model.
func WithDeployment(name string) ProviderOption {
	return func(p *AzureOpenAIProvider) { p.deployment = name }
}

func WithRequestOptions(opts ...option.RequestOption) ProviderOption {
	return func(p *AzureOpenAIProvider) { p.extra = append(p.extra, opts...) }
}

// AzureOpenAIProvider implements llm.Client for Azure OpenAI deployments.
type AzureOpenAIProvider struct {
	completions aiopenai.Completions
	endpoint    string
	apiKey      string
	apiVersion  string
	deployment  string
	credential  azcore.TokenCredential
	extra       []option.RequestOption
}

func NewAzureOpenAIProvider(endpoint, apiKey string, opts ...ProviderOption) *AzureOpenAIProvider {
	p := &AzureOpenAIProvider{endpoint: endpoint, apiKey: apiKey, apiVersion: defaultAPIVersion}
	for _, opt := range opts {
		opt(p)
	}
	if p.apiKey == "" {
		p.apiKey = os.Getenv("AZURE_OPENAI_API_KEY")
	}

	auth := azure.WithAPIKey(p.apiKey)
	if p.credential != nil {
		auth = azure.WithTokenCredential(p.credential)
	}
	clientOpts := append([]option.RequestOption{azure.WithEndpoint(p.endpoint, p.apiVersion), auth}, p.extra...)

	p.completions = aiopenai.Completions{
		Client: openai.NewClient(clientOpts...),
		Codes:  codes,
		Parse:  ParseAzureError,
	}
	return p
}

func (p *AzureOpenAIProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (llm.Response, error) {
	if p.endpoint == "" {
		return llm.Response{}, errorRegistry.New(ErrMissingEndpoint)
	}
	if p.apiKey == "" && p.credential == nil {
		return llm.Response{}, errorRegistry.New(ErrMissingCredentials)
	}

	options := llm.ApplyOptions(opts...)
	if options.Model == "" {
		options.Model = p.deployment
	}
	if options.Model == "" {
		return llm.Response{}, errorRegistry.New(ErrMissingDeployment)
	}
	return p.completions.Complete(ctx, messages, options)
}
