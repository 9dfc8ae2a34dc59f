package aigemini

import (
	"context"
	"os"
	"strings"

	"github.com/Abraxas-365/chatkeep/pkg/ai/llm"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

// ProviderOption configures the Gemini provider
type ProviderOption func(*GeminiProvider)

// WithVertexAI switches to the Vertex AI backend, which authenticates with
// application default credentials instead of an api key.
func WithVertexAI(project, location string) ProviderOption {
	return func(p *GeminiProvider) {
		p.vertex = &genai.ClientConfig{Backend: genai.BackendVertexAI, Project: project, Location: location}
	}
}

func WithBaseURL(url string) ProviderOption {
	return func(p *GeminiProvider) { p.baseURL = url }
}

// GeminiProvider implements llm.Client for Google Gemini
type GeminiProvider struct {
	client  *genai.Client
	vertex  *genai.ClientConfig
	baseURL string
}

// NewGeminiProvider falls back to GEMINI_API_KEY when apiKey is empty. The
// key is required unless WithVertexAI is given.
func NewGeminiProvider(ctx context.Context, apiKey string, opts ...ProviderOption) (*GeminiProvider, error) {
	p := &GeminiProvider{}
	for _, opt := range opts {
		opt(p)
	}

	cfg := p.vertex
	if cfg == nil {
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errorRegistry.New(ErrMissingAPIKey)
		}
		cfg = &genai.ClientConfig{Backend: genai.BackendGeminiAPI, APIKey: apiKey}
	}
	cfg.HTTPOptions.BaseURL = p.baseURL

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, codes.Wrap(err, codes.Request).WithDetail("stage", "client_init")
	}
	p.client = client
	return p, nil
}

func (p *GeminiProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (llm.Response, error) {
	conv := llm.SplitSystem(messages)
	if len(conv.Turns) == 0 {
		return llm.Response{}, errorRegistry.New(ErrEmptyMessages).
			WithDetail("system_messages", len(conv.System))
	}

	options := llm.ApplyOptions(opts...)
	if options.Model == "" {
		options.Model = defaultModel
	}

	contents := make([]*genai.Content, 0, len(conv.Turns))
	for _, m := range conv.Turns {
		// Gemini calls the assistant side "model"; anything else is sent as user.
		role := genai.RoleUser
		if m.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, genai.Role(role)))
	}

	result, err := p.client.Models.GenerateContent(ctx, options.Model, contents, generateConfig(conv.System, options))
	if err != nil {
		return llm.Response{}, ParseGeminiError(err).
			WithDetail("model", options.Model).
			WithDetail("num_messages", len(messages))
	}
	if result == nil || len(result.Candidates) == 0 {
		return llm.Response{}, errorRegistry.New(ErrAPIResponse).
			WithDetail("model", options.Model)
	}

	resp := llm.Response{
		Message: llm.NewAssistantMessage(result.Text()),
		Model:   result.ModelVersion,
	}
	if u := result.UsageMetadata; u != nil {
		resp.Usage = llm.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return resp, nil
}

func generateConfig(system []string, options *llm.ChatOptions) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{StopSequences: options.Stop}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if options.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*options.Temperature))
	}
	if options.TopP != nil {
		cfg.TopP = genai.Ptr(float32(*options.TopP))
	}
	if options.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*options.MaxTokens)
	}
	return cfg
}
