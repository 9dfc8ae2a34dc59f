package aiopenai

import (
	"context"
	"os"

	"github.com/Abraxas-365/chatkeep/pkg/ai/llm"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const defaultModel = "gpt-4o"

// OpenAIProvider implements llm.Client for OpenAI and any endpoint that speaks
// the Chat Completions protocol (DashScope compatible mode, Ollama).
type OpenAIProvider struct {
	completions Completions
	apiKey      string
}

// NewOpenAIProvider falls back to OPENAI_API_KEY when apiKey is empty. Extra
// request options such as option.WithBaseURL point it at a compatible server.
func NewOpenAIProvider(apiKey string, opts ...option.RequestOption) *OpenAIProvider {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAIProvider{
		completions: Completions{Client: client, Codes: codes, Parse: ParseOpenAIError},
		apiKey:      apiKey,
	}
}

// NewCompatibleProvider targets an OpenAI-compatible base URL.
func NewCompatibleProvider(apiKey, baseURL string, opts ...option.RequestOption) *OpenAIProvider {
	if baseURL != "" {
		opts = append([]option.RequestOption{option.WithBaseURL(baseURL)}, opts...)
	}
	return NewOpenAIProvider(apiKey, opts...)
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (llm.Response, error) {
	if p.apiKey == "" {
		return llm.Response{}, errorRegistry.New(ErrMissingAPIKey)
	}

	options := llm.ApplyOptions(opts...)
	if options.Model == "" {
		options.Model = defaultModel
	}
	return p.completions.Complete(ctx, messages, options)
}
