package aibedrock

import (
	"context"
	"strings"

	"github.com/Abraxas-365/chatkeep/pkg/ai/llm"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

const defaultModel = "anthropic.claude-sonnet-4-20250514-v1:0"

// ProviderOption configures the Bedrock provider
type ProviderOption func(*BedrockProvider)

// WithDefaultModel sets the model ID used when a request names none.
func WithDefaultModel(model string) ProviderOption {
	return func(p *BedrockProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithClientOptions passes options through to the bedrockruntime client
func WithClientOptions(opts ...func(*bedrockruntime.Options)) ProviderOption {
	return func(p *BedrockProvider) { p.clientOpts = append(p.clientOpts, opts...) }
}

// BedrockProvider implements llm.Client over the Converse API, which gives
// every hosted model family the same request shape.
type BedrockProvider struct {
	client     *bedrockruntime.Client
	model      string
	clientOpts []func(*bedrockruntime.Options)
	signable   bool
}

func NewBedrockProvider(cfg aws.Config, opts ...ProviderOption) *BedrockProvider {
	p := &BedrockProvider{model: defaultModel}
	for _, opt := range opts {
		opt(p)
	}
	p.client = bedrockruntime.NewFromConfig(cfg, p.clientOpts...)

	// The client drops anonymous credentials. With neither SigV4 credentials
	// nor a bearer token it would fall through to a bearer scheme with no
	// token provider.
	resolved := p.client.Options()
	p.signable = resolved.Credentials != nil || resolved.BearerAuthTokenProvider != nil
	return p
}

func (p *BedrockProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (llm.Response, error) {
	if !p.signable {
		return llm.Response{}, errorRegistry.New(ErrMissingCredentials)
	}
	conv := llm.SplitSystem(messages)
	if len(conv.Turns) == 0 {
		return llm.Response{}, errorRegistry.New(ErrEmptyMessages)
	}

	options := llm.ApplyOptions(opts...)
	if options.Model == "" {
		options.Model = p.model
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(options.Model),
		InferenceConfig: inferenceConfig(options),
	}
	for _, s := range conv.System {
		input.System = append(input.System, &types.SystemContentBlockMemberText{Value: s})
	}
	for i, m := range conv.Turns {
		role := types.ConversationRole(m.Role)
		if role != types.ConversationRoleUser && role != types.ConversationRoleAssistant {
			return llm.Response{}, errorRegistry.New(ErrUnsupportedRole).
				WithDetail("message_index", i).
				WithDetail("role", m.Role)
		}
		input.Messages = append(input.Messages, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		})
	}

	output, err := p.client.Converse(ctx, input)
	if err != nil {
		return llm.Response{}, ParseBedrockError(err).
			WithDetail("model", options.Model).
			WithDetail("num_messages", len(messages))
	}

	reply, ok := output.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return llm.Response{}, errorRegistry.New(ErrAPIResponse).
			WithDetail("model", options.Model)
	}

	var text strings.Builder
	for _, block := range reply.Value.Content {
		if t, ok := block.(*types.ContentBlockMemberText); ok {
			text.WriteString(t.Value)
		}
	}

	resp := llm.Response{Message: llm.NewAssistantMessage(text.String()), Model: options.Model}
	if u := output.Usage; u != nil {
		resp.Usage = llm.Usage{
			PromptTokens:     int(aws.ToInt32(u.InputTokens)),
			CompletionTokens: int(aws.ToInt32(u.OutputTokens)),
			TotalTokens:      int(aws.ToInt32(u.TotalTokens)),
		}
	}
	return resp, nil
}

// inferenceConfig returns nil when nothing is set so the model defaults apply.
func inferenceConfig(options *llm.ChatOptions) *types.InferenceConfiguration {
	if options.MaxTokens == nil && options.Temperature == nil && options.TopP == nil && len(options.Stop) == 0 {
		return nil
	}
	cfg := &types.InferenceConfiguration{StopSequences: options.Stop}
	if options.MaxTokens != nil {
		cfg.MaxTokens = aws.Int32(int32(*options.MaxTokens))
	}
	if options.Temperature != nil {
		cfg.Temperature = aws.Float32(float32(*options.Temperature))
	}
	if options.TopP != nil {
		cfg.TopP = aws.Float32(float32(*options.TopP))
	}
	return cfg
}
