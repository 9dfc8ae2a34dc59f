package aianthropic

import (
	"context"
	"os"
	"strings"

	"github.com/Abraxas-365/chatkeep/pkg/ai/llm"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096
)

// AnthropicProvider implements llm.Client over the Messages API.
type AnthropicProvider struct {
	client anthropic.Client
	apiKey string
}

// NewAnthropicProvider falls back to ANTHROPIC_API_KEY when apiKey is empty.
func NewAnthropicProvider(apiKey string, opts ...option.RequestOption) *AnthropicProvider {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return &AnthropicProvider{
		client: anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
		apiKey: apiKey,
	}
}

// Chat lifts system messages into the request's system blocks; Claude
// rejects them inside the turn list.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []llm.Message, opts ...llm.Option) (llm.Response, error) {
	if p.apiKey == "" {
		return llm.Response{}, errorRegistry.New(ErrMissingAPIKey)
	}

	conv := llm.SplitSystem(messages)
	if len(conv.Turns) == 0 {
		return llm.Response{}, errorRegistry.New(ErrEmptyMessages).
			WithDetail("system_messages", len(conv.System))
	}

	options := llm.ApplyOptions(opts...)
	if options.Model == "" {
		options.Model = defaultModel
	}

	params, err := buildParams(conv, options)
	if err != nil {
		return llm.Response{}, err
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return llm.Response{}, ParseAnthropicError(err).
			WithDetail("model", options.Model).
			WithDetail("num_messages", len(messages))
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return llm.Response{
		Message: llm.NewAssistantMessage(text.String()),
		Usage:   llm.Usage{PromptTokens: in, CompletionTokens: out, TotalTokens: in + out},
		Model:   string(msg.Model),
	}, nil
}

func buildParams(conv llm.Conversation, options *llm.ChatOptions) (anthropic.MessageNewParams, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(options.Model),
		MaxTokens: defaultMaxTokens,
		Messages:  make([]anthropic.MessageParam, 0, len(conv.Turns)),
	}

	for _, s := range conv.System {
		params.System = append(params.System, anthropic.TextBlockParam{Text: s})
	}
	for i, m := range conv.Turns {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case llm.RoleUser:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		case llm.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		default:
			return params, errorRegistry.New(ErrUnsupportedRole).
				WithDetail("message_index", i).
				WithDetail("role", m.Role)
		}
	}

	if options.MaxTokens != nil {
		params.MaxTokens = int64(*options.MaxTokens)
	}
	if options.Temperature != nil {
		params.Temperature = anthropic.Float(*options.Temperature)
	}
	if options.TopP != nil {
		params.TopP = anthropic.Float(*options.TopP)
	}
	params.StopSequences = options.Stop
	return params, nil
}
