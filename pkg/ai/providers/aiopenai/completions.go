package aiopenai

import (
	"context"

	"github.com/Abraxas-365/chatkeep/pkg/ai/llm"
	"github.com/Abraxas-365/chatkeep/pkg/ai/providers/upstream"
	"github.com/Abraxas-365/chatkeep/pkg/errx"
	"github.com/openai/openai-go/v3"
)

// Completions sends Chat Completions requests through an already configured
// SDK client. Azure deployments reuse it with their own error codes.
type Completions struct {
	Client openai.Client
	Codes  *upstream.Codes
	Parse  func(error) *errx.Error
}

// Complete validates messages, sends one request and converts the first
// choice. options.Model must already be resolved.
func (c Completions) Complete(ctx context.Context, messages []llm.Message, options *llm.ChatOptions) (llm.Response, error) {
	if len(messages) == 0 {
		return llm.Response{}, c.Codes.New(c.Codes.EmptyMessages)
	}

	params := openai.ChatCompletionNewParams{
		Model:    options.Model,
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
	}
	for i, msg := range messages {
		var m openai.ChatCompletionMessageParamUnion
		switch msg.Role {
		case llm.RoleSystem:
			m = openai.SystemMessage(msg.Content)
		case llm.RoleUser:
			m = openai.UserMessage(msg.Content)
		case llm.RoleAssistant:
			m = openai.AssistantMessage(msg.Content)
		default:
			return llm.Response{}, c.Codes.New(c.Codes.UnsupportedRole).
				WithDetail("message_index", i).
				WithDetail("role", msg.Role)
		}
		params.Messages = append(params.Messages, m)
	}

	if options.Temperature != nil {
		params.Temperature = openai.Float(*options.Temperature)
	}
	if options.TopP != nil {
		params.TopP = openai.Float(*options.TopP)
	}
	if options.MaxTokens != nil {
		params.MaxCompletionTokens = openai.Int(int64(*options.MaxTokens))
	}
	if len(options.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: options.Stop}
	}

	completion, err := c.Client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.Response{}, c.Parse(err).
			WithDetail("model", options.Model).
			WithDetail("num_messages", len(messages))
	}
	if len(completion.Choices) == 0 {
		return llm.Response{}, c.Codes.New(c.Codes.Response).
			WithDetail("model", completion.Model)
	}

	reply := completion.Choices[0].Message
	return llm.Response{
		Message: llm.NewAssistantMessage(reply.Content),
		Usage: llm.Usage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
		Model: completion.Model,
	}, nil
}
