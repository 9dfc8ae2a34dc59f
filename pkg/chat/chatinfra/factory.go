package chatinfra

import (
	"context"
	"sort"

	"github.com/Abraxas-365/chatkeep/pkg/ai/llm"
	"github.com/Abraxas-365/chatkeep/pkg/ai/llm/agentx"
	"github.com/Abraxas-365/chatkeep/pkg/ai/providers/aianthropic"
	"github.com/Abraxas-365/chatkeep/pkg/ai/providers/aiazure"
	"github.com/Abraxas-365/chatkeep/pkg/ai/providers/aibedrock"
	"github.com/Abraxas-365/chatkeep/pkg/ai/providers/aigemini"
	"github.com/Abraxas-365/chatkeep/pkg/ai/providers/aiopenai"
	"github.com/Abraxas-365/chatkeep/pkg/chat"
	"github.com/Abraxas-365/chatkeep/pkg/config"
	"github.com/Abraxas-365/chatkeep/pkg/logx"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// Model type names accepted in llm_type.
const (
	VariantGPT4    = "gpt4"
	VariantGPT5    = "gpt5"
	VariantQianwen = "qianwen"
	VariantOllama  = "ollama"
	VariantClaude  = "claude"
	VariantGemini  = "gemini"
	VariantBedrock = "bedrock"
	VariantAzure   = "azure"
)

// ClientBuilder creates the provider client for one variant.
type ClientBuilder func(ctx context.Context) (llm.Client, error)

type variantSpec struct {
	build   ClientBuilder
	options []llm.Option
}

// ModelFactory builds agent handles for every configured model type.
type ModelFactory struct {
	variants   map[string]variantSpec
	chatPrompt string
	taskPrompt string
}

type FactoryOption func(*ModelFactory)

// WithClientBuilder replaces how variant's client is created. The variant's
// chat options are kept.
func WithClientBuilder(variant string, build ClientBuilder) FactoryOption {
	return func(f *ModelFactory) {
		spec := f.variants[variant]
		spec.build = build
		f.variants[variant] = spec
	}
}

// NewModelFactory maps each model type onto its provider.
func NewModelFactory(models config.LLMConfig, prompts config.ChatConfig, opts ...FactoryOption) *ModelFactory {
	f := &ModelFactory{
		variants:   defaultVariants(models),
		chatPrompt: prompts.SystemPrompt,
		taskPrompt: prompts.TaskSystemPrompt,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func defaultVariants(m config.LLMConfig) map[string]variantSpec {
	return map[string]variantSpec{
		VariantGPT4: {
			build: func(ctx context.Context) (llm.Client, error) {
				if m.OpenAI.APIKey == "" {
					return nil, missingCredentials(VariantGPT4, "OPENAI_API_KEY")
				}
				return aiopenai.NewCompatibleProvider(m.OpenAI.APIKey, m.OpenAI.BaseURL), nil
			},
			options: []llm.Option{llm.WithModel(m.OpenAI.Model), llm.WithTemperature(m.OpenAI.Temperature)},
		},
		// gpt-5 models reject a custom temperature.
		VariantGPT5: {
			build: func(ctx context.Context) (llm.Client, error) {
				if m.OpenAI.APIKey == "" {
					return nil, missingCredentials(VariantGPT5, "OPENAI_API_KEY")
				}
				return aiopenai.NewCompatibleProvider(m.OpenAI.APIKey, m.OpenAI.BaseURL), nil
			},
			options: []llm.Option{llm.WithModel(m.OpenAI.GPT5Model)},
		},
		VariantQianwen: {
			build: func(ctx context.Context) (llm.Client, error) {
				if m.Qianwen.APIKey == "" {
					return nil, missingCredentials(VariantQianwen, "DASHSCOPE_API_KEY")
				}
				return aiopenai.NewCompatibleProvider(m.Qianwen.APIKey, m.Qianwen.BaseURL), nil
			},
			options: []llm.Option{llm.WithModel(m.Qianwen.Model), llm.WithTemperature(m.Qianwen.Temperature)},
		},
		VariantOllama: {
			build: func(ctx context.Context) (llm.Client, error) {
				return aiopenai.NewCompatibleProvider(m.Ollama.APIKey, m.Ollama.BaseURL), nil
			},
			options: []llm.Option{llm.WithModel(m.Ollama.Model), llm.WithTemperature(m.Ollama.Temperature)},
		},
		VariantClaude: {
			build: func(ctx context.Context) (llm.Client, error) {
				if m.Anthropic.APIKey == "" {
					return nil, missingCredentials(VariantClaude, "ANTHROPIC_API_KEY")
				}
				return aianthropic.NewAnthropicProvider(m.Anthropic.APIKey), nil
			},
			options: []llm.Option{llm.WithModel(m.Anthropic.Model)},
		},
		VariantGemini: {
			build: func(ctx context.Context) (llm.Client, error) {
				if m.Gemini.APIKey == "" {
					return nil, missingCredentials(VariantGemini, "GEMINI_API_KEY")
				}
				return aigemini.NewGeminiProvider(ctx, m.Gemini.APIKey)
			},
			options: []llm.Option{llm.WithModel(m.Gemini.Model)},
		},
		VariantBedrock: {
			build: func(ctx context.Context) (llm.Client, error) {
				if m.Bedrock.Region == "" {
					return nil, missingCredentials(VariantBedrock, "BEDROCK_REGION")
				}
				cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(m.Bedrock.Region))
				if err != nil {
					return nil, ErrRegistry.NewWithCause(ErrClientInit, err).WithDetail("variant", VariantBedrock)
				}
				return aibedrock.NewBedrockProvider(cfg, aibedrock.WithDefaultModel(m.Bedrock.ModelID)), nil
			},
			options: []llm.Option{llm.WithModel(m.Bedrock.ModelID)},
		},
		VariantAzure: {
			build: func(ctx context.Context) (llm.Client, error) {
				if m.Azure.Endpoint == "" || m.Azure.APIKey == "" {
					return nil, missingCredentials(VariantAzure, "AZURE_OPENAI_API_KEY")
				}
				return aiazure.NewAzureOpenAIProvider(m.Azure.Endpoint, m.Azure.APIKey,
					aiazure.WithDeployment(m.Azure.Deployment),
					aiazure.WithAPIVersion(m.Azure.APIVersion),
				), nil
			},
			options: []llm.Option{llm.WithModel(m.Azure.Deployment)},
		},
	}
}

// Build creates an agent for kind on variant's provider. Task agents are
// stateless and use the task prompt.
func (f *ModelFactory) Build(ctx context.Context, kind chat.Kind, variant string) (chat.Handle, error) {
	spec, ok := f.variants[variant]
	if !ok || spec.build == nil {
		return nil, ErrRegistry.New(ErrUnsupportedVariant).WithDetail("variant", variant)
	}

	client, err := spec.build(ctx)
	if err != nil {
		return nil, err
	}

	opts := []agentx.AgentOption{
		agentx.WithName(variant + "/" + string(kind)),
		agentx.WithOptions(spec.options...),
	}
	if kind == chat.KindTask {
		opts = append(opts, agentx.WithSystemPrompt(f.taskPrompt), agentx.Stateless())
	} else {
		opts = append(opts, agentx.WithSystemPrompt(f.chatPrompt))
	}

	logx.WithFields(logx.Fields{
		"variant": variant,
		"kind":    string(kind),
	}).Debug("model handle built")
	return agentx.New(client, opts...), nil
}

func (f *ModelFactory) Supports(variant string) bool {
	_, ok := f.variants[variant]
	return ok
}

// Variants lists the accepted model types, sorted.
func (f *ModelFactory) Variants() []string {
	out := make([]string, 0, len(f.variants))
	for v := range f.variants {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
