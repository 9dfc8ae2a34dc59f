package agentx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Abraxas-365/chatkeep/pkg/ai/llm"
)

// ErrEmptyReply is returned when the model answers with no text.
var ErrEmptyReply = errors.New("model returned an empty reply")

// Agent pairs an LLM client with a system prompt and call options. It holds
// no conversation state of its own, so one Agent may serve many concurrent
// callers.
type Agent struct {
	client       llm.Client
	systemPrompt string
	options      []llm.Option
	stateless    bool
	name         string
}

// AgentOption configures an Agent
type AgentOption func(*Agent)

// WithOptions adds LLM options to the agent
func WithOptions(options ...llm.Option) AgentOption {
	return func(a *Agent) {
		a.options = append(a.options, options...)
	}
}

// WithSystemPrompt sets the instruction sent ahead of every conversation
func WithSystemPrompt(prompt string) AgentOption {
	return func(a *Agent) {
		a.systemPrompt = prompt
	}
}

// Stateless makes the agent ignore any history passed to it
func Stateless() AgentOption {
	return func(a *Agent) {
		a.stateless = true
	}
}

// WithName labels the agent for logs and metrics
func WithName(name string) AgentOption {
	return func(a *Agent) {
		a.name = name
	}
}

// New creates a new agent
func New(client llm.Client, opts ...AgentOption) *Agent {
	agent := &Agent{client: client}
	for _, opt := range opts {
		opt(agent)
	}
	return agent
}

// Name is the label set with WithName.
func (a *Agent) Name() string { return a.name }

// Ask sends the system prompt, history and input to the model and returns the
// reply text. History is ignored by stateless agents. Ask does not record the
// exchange anywhere.
func (a *Agent) Ask(ctx context.Context, history []llm.Message, input string) (string, error) {
	resp, err := a.client.Chat(ctx, a.buildMessages(history, input), a.options...)
	if err != nil {
		return "", fmt.Errorf("LLM error: %w", err)
	}

	text := strings.TrimSpace(resp.Message.Content)
	if text == "" {
		return "", ErrEmptyReply
	}
	return resp.Message.Content, nil
}

func (a *Agent) buildMessages(history []llm.Message, input string) []llm.Message {
	messages := make([]llm.Message, 0, len(history)+2)
	if a.systemPrompt != "" {
		messages = append(messages, llm.NewSystemMessage(a.systemPrompt))
	}
	if !a.stateless {
		messages = append(messages, history...)
	}
	return append(messages, llm.NewUserMessage(input))
}
