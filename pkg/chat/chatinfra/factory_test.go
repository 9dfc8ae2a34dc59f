package chatinfra

import (
	"context"
	"testing"

	"github.com/Abraxas-365/chatkeep/pkg/ai/llm"
	"github.com/Abraxas-365/chatkeep/pkg/chat"
	"github.com/Abraxas-365/chatkeep/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capture struct {
	messages []llm.Message
	options  *llm.ChatOptions
}

func capturingBuilder(c *capture) ClientBuilder {
	return func(ctx context.Context) (llm.Client, error) {
		return llm.ClientFunc(func(ctx context.Context, messages []llm.Message, opts ...llm.Option) (llm.Response, error) {
			c.messages = messages
			c.options = llm.ApplyOptions(opts...)
			return llm.Response{Message: llm.NewAssistantMessage("ok")}, nil
		}), nil
	}
}

func testConfig() (config.LLMConfig, config.ChatConfig) {
	models := config.LLMConfig{
		OpenAI: config.OpenAIConfig{Model: "gpt-4", GPT5Model: "gpt-5", Temperature: 0.7},
	}
	prompts := config.ChatConfig{SystemPrompt: "chat prompt", TaskSystemPrompt: "task prompt"}
	return models, prompts
}

func TestBuild_MissingKey(t *testing.T) {
	models, prompts := testConfig()
	f := NewModelFactory(models, prompts)

	for _, variant := range []string{VariantGPT4, VariantGPT5, VariantQianwen, VariantClaude, VariantGemini, VariantBedrock, VariantAzure} {
		_, err := f.Build(context.Background(), chat.KindChat, variant)
		require.Error(t, err, variant)
		assert.True(t, ErrMissingCredentials.Is(err), variant)
		assert.Contains(t, err.Error(), "API key not configured", variant)
	}
}

func TestBuild_UnknownVariant(t *testing.T) {
	models, prompts := testConfig()
	f := NewModelFactory(models, prompts)

	_, err := f.Build(context.Background(), chat.KindChat, "llama9")
	assert.True(t, ErrUnsupportedVariant.Is(err))
	assert.False(t, f.Supports("llama9"))
}

func TestVariants(t *testing.T) {
	models, prompts := testConfig()
	f := NewModelFactory(models, prompts)

	assert.Equal(t, []string{"azure", "bedrock", "claude", "gemini", "gpt4", "gpt5", "ollama", "qianwen"}, f.Variants())
	assert.True(t, f.Supports(VariantOllama))
}

func TestBuild_ChatHandleSendsHistoryAndTemperature(t *testing.T) {
	models, prompts := testConfig()
	var c capture
	f := NewModelFactory(models, prompts, WithClientBuilder(VariantGPT4, capturingBuilder(&c)))

	h, err := f.Build(context.Background(), chat.KindChat, VariantGPT4)
	require.NoError(t, err)

	history := []llm.Message{llm.NewUserMessage("earlier"), llm.NewAssistantMessage("reply")}
	text, err := h.Ask(context.Background(), history, "now")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)

	require.Len(t, c.messages, 4)
	assert.Equal(t, llm.NewSystemMessage("chat prompt"), c.messages[0])
	assert.Equal(t, "now", c.messages[3].Content)
	assert.Equal(t, "gpt-4", c.options.Model)
	require.NotNil(t, c.options.Temperature)
	assert.InDelta(t, 0.7, *c.options.Temperature, 1e-9)
}

func TestBuild_GPT5HasNoTemperature(t *testing.T) {
	models, prompts := testConfig()
	var c capture
	f := NewModelFactory(models, prompts, WithClientBuilder(VariantGPT5, capturingBuilder(&c)))

	h, err := f.Build(context.Background(), chat.KindChat, VariantGPT5)
	require.NoError(t, err)
	_, err = h.Ask(context.Background(), nil, "hi")
	require.NoError(t, err)

	assert.Equal(t, "gpt-5", c.options.Model)
	assert.Nil(t, c.options.Temperature)
}

func TestBuild_TaskHandleIsStateless(t *testing.T) {
	models, prompts := testConfig()
	var c capture
	f := NewModelFactory(models, prompts, WithClientBuilder(VariantGPT4, capturingBuilder(&c)))

	h, err := f.Build(context.Background(), chat.KindTask, VariantGPT4)
	require.NoError(t, err)

	_, err = h.Ask(context.Background(), []llm.Message{llm.NewUserMessage("ignored")}, "do it")
	require.NoError(t, err)

	require.Len(t, c.messages, 2)
	assert.Equal(t, "task prompt", c.messages[0].Content)
	assert.Equal(t, "do it", c.messages[1].Content)
}

func TestBuild_OllamaNeedsNoKey(t *testing.T) {
	models, prompts := testConfig()
	models.Ollama = config.CompatConfig{APIKey: "ollama", BaseURL: "http://localhost:11434/v1", Model: "llama3.1"}
	f := NewModelFactory(models, prompts)

	h, err := f.Build(context.Background(), chat.KindChat, VariantOllama)
	require.NoError(t, err)
	assert.NotNil(t, h)
}
