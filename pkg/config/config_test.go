package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Chat.MaxMessages)
	assert.Equal(t, 4000, cfg.Chat.MaxTokens)
	assert.Equal(t, 24*time.Hour, cfg.Chat.SessionTimeout)
	assert.Equal(t, time.Hour, cfg.Chat.CleanupInterval)
	assert.False(t, cfg.Chat.LimitWarnings)
	assert.Equal(t, "gpt4", cfg.Chat.DefaultVariant)
	assert.Equal(t, 2*time.Minute, cfg.Chat.InvocationTimeout)

	assert.Equal(t, 100, cfg.Cache.MaxEntries)
	assert.Equal(t, 900*time.Second, cfg.Cache.IdleTTL)
	assert.Equal(t, 300*time.Second, cfg.Cache.SweepInterval)

	assert.Equal(t, "gpt-4", cfg.LLM.OpenAI.Model)
	assert.Equal(t, "qwen-turbo", cfg.LLM.Qianwen.Model)
	assert.Equal(t, []string{"default"}, cfg.Jobs.Queues)
	assert.False(t, cfg.Auth.Enabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CHAT_MAX_MESSAGES", "6")
	t.Setenv("CHAT_LIMIT_WARNINGS", "true")
	t.Setenv("DEFAULT_LLM_TYPE", " Qianwen ")
	t.Setenv("AGENT_CACHE_TTL_SECONDS", "60")
	t.Setenv("JOBX_QUEUES", "chat, default")
	t.Setenv("REDIS_HOST", "cache.internal")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Chat.MaxMessages)
	assert.True(t, cfg.Chat.LimitWarnings)
	assert.Equal(t, "qianwen", cfg.Chat.DefaultVariant)
	assert.Equal(t, time.Minute, cfg.Cache.IdleTTL)
	assert.Equal(t, []string{"chat", "default"}, cfg.Jobs.Queues)
	assert.Equal(t, "cache.internal:6380", cfg.Redis.Address())
}

func TestLoadRejectsNonPositiveLimits(t *testing.T) {
	t.Setenv("CHAT_MAX_TOKENS", "0")
	t.Setenv("AGENT_CACHE_MAX_SIZE", "-1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHAT_MAX_TOKENS")
	assert.Contains(t, err.Error(), "AGENT_CACHE_MAX_SIZE")
}

func TestRedacted(t *testing.T) {
	cfg := Config{}
	cfg.LLM.OpenAI.APIKey = "sk-live"
	cfg.Auth.JWTSecret = "secret"
	cfg.Database.Password = ""

	out := cfg.Redacted()
	assert.Equal(t, "****", out.LLM.OpenAI.APIKey)
	assert.Equal(t, "****", out.Auth.JWTSecret)
	assert.Empty(t, out.Database.Password)
	assert.Equal(t, "sk-live", cfg.LLM.OpenAI.APIKey, "original must be untouched")
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "chat", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=chat sslmode=disable", d.DSN())
}
