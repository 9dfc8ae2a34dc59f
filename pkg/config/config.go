package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Abraxas-365/chatkeep/pkg/logx"
	"github.com/spf13/viper"
)

// Config is the complete runtime configuration of the service.
type Config struct {
	Server   ServerConfig
	Chat     ChatConfig
	Cache    CacheConfig
	LLM      LLMConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Jobs     JobsConfig
	Auth     AuthConfig
}

type ServerConfig struct {
	Port        int
	CORSOrigins string
	Version     string
	Debug       bool
}

// ChatConfig bounds conversation history and model invocation.
type ChatConfig struct {
	MaxMessages       int
	MaxTokens         int
	SessionTimeout    time.Duration
	CleanupInterval   time.Duration
	LimitWarnings     bool
	InvocationTimeout time.Duration
	DefaultVariant    string
	SystemPrompt      string
	TaskSystemPrompt  string
}

// CacheConfig sizes the model handle cache.
type CacheConfig struct {
	MaxEntries    int
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

type LLMConfig struct {
	OpenAI    OpenAIConfig
	Qianwen   CompatConfig
	Ollama    CompatConfig
	Anthropic AnthropicConfig
	Gemini    GeminiConfig
	Bedrock   BedrockConfig
	Azure     AzureConfig
}

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	GPT5Model   string
	Temperature float64
}

// CompatConfig describes an OpenAI-compatible endpoint.
type CompatConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
}

type AnthropicConfig struct {
	APIKey string
	Model  string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type BedrockConfig struct {
	Region  string
	ModelID string
}

type AzureConfig struct {
	Endpoint   string
	APIKey     string
	Deployment string
	APIVersion string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

// Address returns host:port.
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type DatabaseConfig struct {
	Host               string
	Port               int
	User               string
	Password           string
	Name               string
	SSLMode            string
	TranscriptsEnabled bool
}

// DSN returns a lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// JobsConfig configures the background task workers.
type JobsConfig struct {
	Enabled           bool
	Concurrency       int
	Queues            []string
	PollInterval      time.Duration
	ShutdownTimeout   time.Duration
	DequeueTimeout    time.Duration
	DefaultRetryDelay time.Duration
	MaxRetries        int
	ResultTTL         time.Duration
}

type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// Enabled reports whether bearer tokens are verified.
func (a AuthConfig) Enabled() bool { return a.JWTSecret != "" }

const (
	defaultChatPrompt = "You are a helpful assistant. Answer clearly and concisely."
	defaultTaskPrompt = "You are a task assistant. Complete the task described by the user and reply with the result only."
)

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("PORT", 8080)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("APP_VERSION", "dev")
	v.SetDefault("DEBUG", false)

	// Chat
	v.SetDefault("CHAT_MAX_MESSAGES", 20)
	v.SetDefault("CHAT_MAX_TOKENS", 4000)
	v.SetDefault("CHAT_SESSION_TIMEOUT_HOURS", 24)
	v.SetDefault("CHAT_CLEANUP_INTERVAL_HOURS", 1)
	v.SetDefault("CHAT_LIMIT_WARNINGS", false)
	v.SetDefault("LLM_INVOCATION_TIMEOUT_SECONDS", 120)
	v.SetDefault("DEFAULT_LLM_TYPE", "gpt4")
	v.SetDefault("CHAT_SYSTEM_PROMPT", defaultChatPrompt)
	v.SetDefault("TASK_SYSTEM_PROMPT", defaultTaskPrompt)

	// Handle cache
	v.SetDefault("AGENT_CACHE_MAX_SIZE", 100)
	v.SetDefault("AGENT_CACHE_TTL_SECONDS", 900)
	v.SetDefault("AGENT_CACHE_SWEEP_SECONDS", 300)

	// Models
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_API_BASE", "")
	v.SetDefault("OPENAI_MODEL_NAME", "gpt-4")
	v.SetDefault("OPENAI_GPT5_MODEL_NAME", "gpt-5")
	v.SetDefault("OPENAI_TEMPERATURE", 0.7)
	v.SetDefault("DASHSCOPE_API_KEY", "")
	v.SetDefault("DASHSCOPE_API_BASE", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("QIANWEN_MODEL_NAME", "qwen-turbo")
	v.SetDefault("QIANWEN_TEMPERATURE", 0.7)
	v.SetDefault("OLLAMA_BASE_URL", "http://localhost:11434/v1")
	v.SetDefault("OLLAMA_MODEL_NAME", "llama3.1")
	v.SetDefault("OLLAMA_TEMPERATURE", 0.7)
	v.SetDefault("ANTHROPIC_API_KEY", "")
	v.SetDefault("ANTHROPIC_MODEL_NAME", "claude-sonnet-4-5")
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL_NAME", "gemini-2.5-flash")
	v.SetDefault("BEDROCK_REGION", "")
	v.SetDefault("BEDROCK_MODEL_ID", "anthropic.claude-3-5-sonnet-20240620-v1:0")
	v.SetDefault("AZURE_OPENAI_ENDPOINT", "")
	v.SetDefault("AZURE_OPENAI_API_KEY", "")
	v.SetDefault("AZURE_OPENAI_DEPLOYMENT", "")
	v.SetDefault("AZURE_OPENAI_API_VERSION", "2024-10-21")

	// Redis
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("USE_REDIS_CACHE", false)

	// Postgres
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "chatkeep")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("TRANSCRIPTS_ENABLED", false)

	// Jobs
	v.SetDefault("JOBX_ENABLED", true)
	v.SetDefault("JOBX_CONCURRENCY", 4)
	v.SetDefault("JOBX_QUEUES", "default")
	v.SetDefault("JOBX_POLL_INTERVAL", "1s")
	v.SetDefault("JOBX_SHUTDOWN_TIMEOUT", "30s")
	v.SetDefault("JOBX_DEQUEUE_TIMEOUT", "5s")
	v.SetDefault("JOBX_DEFAULT_RETRY_DELAY", "30s")
	v.SetDefault("JOBX_MAX_RETRIES", 3)
	v.SetDefault("JOBX_RESULT_TTL", "24h")

	// Auth
	v.SetDefault("AUTH_JWT_SECRET", "")
	v.SetDefault("AUTH_JWT_ISSUER", "chatkeep")
	v.SetDefault("AUTH_TOKEN_TTL", "24h")
}

// Load reads configuration from defaults, an optional chatkeep.yaml and the
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigName("chatkeep")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		logx.Debug("config file not found, using environment variables and defaults")
	} else {
		logx.Infof("using config file: %s", v.ConfigFileUsed())
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	hours := func(key string) time.Duration { return time.Duration(v.GetInt(key)) * time.Hour }
	seconds := func(key string) time.Duration { return time.Duration(v.GetInt(key)) * time.Second }

	return &Config{
		Server: ServerConfig{
			Port:        v.GetInt("PORT"),
			CORSOrigins: v.GetString("CORS_ORIGINS"),
			Version:     v.GetString("APP_VERSION"),
			Debug:       v.GetBool("DEBUG"),
		},
		Chat: ChatConfig{
			MaxMessages:       v.GetInt("CHAT_MAX_MESSAGES"),
			MaxTokens:         v.GetInt("CHAT_MAX_TOKENS"),
			SessionTimeout:    hours("CHAT_SESSION_TIMEOUT_HOURS"),
			CleanupInterval:   hours("CHAT_CLEANUP_INTERVAL_HOURS"),
			LimitWarnings:     v.GetBool("CHAT_LIMIT_WARNINGS"),
			InvocationTimeout: seconds("LLM_INVOCATION_TIMEOUT_SECONDS"),
			DefaultVariant:    strings.ToLower(strings.TrimSpace(v.GetString("DEFAULT_LLM_TYPE"))),
			SystemPrompt:      v.GetString("CHAT_SYSTEM_PROMPT"),
			TaskSystemPrompt:  v.GetString("TASK_SYSTEM_PROMPT"),
		},
		Cache: CacheConfig{
			MaxEntries:    v.GetInt("AGENT_CACHE_MAX_SIZE"),
			IdleTTL:       seconds("AGENT_CACHE_TTL_SECONDS"),
			SweepInterval: seconds("AGENT_CACHE_SWEEP_SECONDS"),
		},
		LLM: LLMConfig{
			OpenAI: OpenAIConfig{
				APIKey:      v.GetString("OPENAI_API_KEY"),
				BaseURL:     v.GetString("OPENAI_API_BASE"),
				Model:       v.GetString("OPENAI_MODEL_NAME"),
				GPT5Model:   v.GetString("OPENAI_GPT5_MODEL_NAME"),
				Temperature: v.GetFloat64("OPENAI_TEMPERATURE"),
			},
			Qianwen: CompatConfig{
				APIKey:      v.GetString("DASHSCOPE_API_KEY"),
				BaseURL:     v.GetString("DASHSCOPE_API_BASE"),
				Model:       v.GetString("QIANWEN_MODEL_NAME"),
				Temperature: v.GetFloat64("QIANWEN_TEMPERATURE"),
			},
			Ollama: CompatConfig{
				APIKey:      "ollama",
				BaseURL:     v.GetString("OLLAMA_BASE_URL"),
				Model:       v.GetString("OLLAMA_MODEL_NAME"),
				Temperature: v.GetFloat64("OLLAMA_TEMPERATURE"),
			},
			Anthropic: AnthropicConfig{
				APIKey: v.GetString("ANTHROPIC_API_KEY"),
				Model:  v.GetString("ANTHROPIC_MODEL_NAME"),
			},
			Gemini: GeminiConfig{
				APIKey: v.GetString("GEMINI_API_KEY"),
				Model:  v.GetString("GEMINI_MODEL_NAME"),
			},
			Bedrock: BedrockConfig{
				Region:  v.GetString("BEDROCK_REGION"),
				ModelID: v.GetString("BEDROCK_MODEL_ID"),
			},
			Azure: AzureConfig{
				Endpoint:   v.GetString("AZURE_OPENAI_ENDPOINT"),
				APIKey:     v.GetString("AZURE_OPENAI_API_KEY"),
				Deployment: v.GetString("AZURE_OPENAI_DEPLOYMENT"),
				APIVersion: v.GetString("AZURE_OPENAI_API_VERSION"),
			},
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetInt("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			Enabled:  v.GetBool("USE_REDIS_CACHE"),
		},
		Database: DatabaseConfig{
			Host:               v.GetString("DB_HOST"),
			Port:               v.GetInt("DB_PORT"),
			User:               v.GetString("DB_USER"),
			Password:           v.GetString("DB_PASSWORD"),
			Name:               v.GetString("DB_NAME"),
			SSLMode:            v.GetString("DB_SSLMODE"),
			TranscriptsEnabled: v.GetBool("TRANSCRIPTS_ENABLED"),
		},
		Jobs: JobsConfig{
			Enabled:           v.GetBool("JOBX_ENABLED"),
			Concurrency:       v.GetInt("JOBX_CONCURRENCY"),
			Queues:            splitList(v.GetString("JOBX_QUEUES")),
			PollInterval:      v.GetDuration("JOBX_POLL_INTERVAL"),
			ShutdownTimeout:   v.GetDuration("JOBX_SHUTDOWN_TIMEOUT"),
			DequeueTimeout:    v.GetDuration("JOBX_DEQUEUE_TIMEOUT"),
			DefaultRetryDelay: v.GetDuration("JOBX_DEFAULT_RETRY_DELAY"),
			MaxRetries:        v.GetInt("JOBX_MAX_RETRIES"),
			ResultTTL:         v.GetDuration("JOBX_RESULT_TTL"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("AUTH_JWT_SECRET"),
			Issuer:    v.GetString("AUTH_JWT_ISSUER"),
			TokenTTL:  v.GetDuration("AUTH_TOKEN_TTL"),
		},
	}
}

// Validate rejects limits that would make the service misbehave.
func (c *Config) Validate() error {
	var problems []string

	positive := map[string]int{
		"CHAT_MAX_MESSAGES":              c.Chat.MaxMessages,
		"CHAT_MAX_TOKENS":                c.Chat.MaxTokens,
		"CHAT_SESSION_TIMEOUT_HOURS":     int(c.Chat.SessionTimeout / time.Hour),
		"CHAT_CLEANUP_INTERVAL_HOURS":    int(c.Chat.CleanupInterval / time.Hour),
		"AGENT_CACHE_MAX_SIZE":           c.Cache.MaxEntries,
		"AGENT_CACHE_TTL_SECONDS":        int(c.Cache.IdleTTL / time.Second),
		"AGENT_CACHE_SWEEP_SECONDS":      int(c.Cache.SweepInterval / time.Second),
		"LLM_INVOCATION_TIMEOUT_SECONDS": int(c.Chat.InvocationTimeout / time.Second),
		"PORT":                           c.Server.Port,
	}
	for key, val := range positive {
		if val <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive (got %d)", key, val))
		}
	}

	if c.Chat.DefaultVariant == "" {
		problems = append(problems, "DEFAULT_LLM_TYPE must not be empty")
	}
	if c.Jobs.Enabled && c.Jobs.Concurrency <= 0 {
		problems = append(problems, fmt.Sprintf("JOBX_CONCURRENCY must be positive (got %d)", c.Jobs.Concurrency))
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Redacted returns a copy with secrets masked, suitable for printing.
func (c Config) Redacted() Config {
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "****"
	}
	c.LLM.OpenAI.APIKey = mask(c.LLM.OpenAI.APIKey)
	c.LLM.Qianwen.APIKey = mask(c.LLM.Qianwen.APIKey)
	c.LLM.Anthropic.APIKey = mask(c.LLM.Anthropic.APIKey)
	c.LLM.Gemini.APIKey = mask(c.LLM.Gemini.APIKey)
	c.LLM.Azure.APIKey = mask(c.LLM.Azure.APIKey)
	c.Redis.Password = mask(c.Redis.Password)
	c.Database.Password = mask(c.Database.Password)
	c.Auth.JWTSecret = mask(c.Auth.JWTSecret)
	return c
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
