package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hal9000y/gmail-triage/internal/config"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("OLLAMA_CHAT_URL", "http://localhost:11434/api/chat")
	t.Setenv("OLLAMA_MODEL", "qwen3:8b")
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.com/api/webhooks/1/abc")

	cfg := config.FromEnv()

	assert.Equal(t, "http://localhost:11434/api/chat", cfg.OllamaChatURL)
	assert.Equal(t, "qwen3:8b", cfg.OllamaModel)
	assert.Equal(t, "https://discord.com/api/webhooks/1/abc", cfg.WebhookURL)
	assert.EqualValues(t, config.DefaultMaxResults, cfg.MaxResults)
}

func TestFromEnvToleratesMissingValues(t *testing.T) {
	t.Setenv("OLLAMA_CHAT_URL", "")
	t.Setenv("OLLAMA_MODEL", "")
	t.Setenv("DISCORD_WEBHOOK_URL", "")

	cfg := config.FromEnv()

	assert.Empty(t, cfg.OllamaChatURL)
	assert.Empty(t, cfg.OllamaModel)
	assert.Empty(t, cfg.WebhookURL)
}
