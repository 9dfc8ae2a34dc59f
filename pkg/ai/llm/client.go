package llm

import "context"

// Client is implemented by every model provider.
type Client interface {
	Chat(ctx context.Context, messages []Message, opts ...Option) (Response, error)
}

// Response is a single, non-streamed completion.
type Response struct {
	Message Message `json:"message"`
	Usage   Usage   `json:"usage"`
	Model   string  `json:"model,omitempty"`
}

// ChatOptions carries per-request generation settings. Nil pointers mean
// "use the provider default"; some models reject an explicit temperature.
type ChatOptions struct {
	Model       string
	Temperature *float64
	MaxTokens   *int
	TopP        *float64
	Stop        []string
}

// Option mutates ChatOptions.
type Option func(*ChatOptions)

// DefaultOptions returns empty options.
func DefaultOptions() *ChatOptions {
	return &ChatOptions{}
}

// ApplyOptions folds opts over the defaults.
func ApplyOptions(opts ...Option) *ChatOptions {
	o := DefaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

func WithModel(model string) Option {
	return func(o *ChatOptions) { o.Model = model }
}

func WithTemperature(t float64) Option {
	return func(o *ChatOptions) { o.Temperature = &t }
}

func WithMaxTokens(n int) Option {
	return func(o *ChatOptions) { o.MaxTokens = &n }
}

func WithTopP(p float64) Option {
	return func(o *ChatOptions) { o.TopP = &p }
}

func WithStop(stop ...string) Option {
	return func(o *ChatOptions) { o.Stop = stop }
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, messages []Message, opts ...Option) (Response, error)

func (f ClientFunc) Chat(ctx context.Context, messages []Message, opts ...Option) (Response, error) {
	return f(ctx, messages, opts...)
}
