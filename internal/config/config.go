// Package config holds the runtime configuration resolved once at startup.
package config

import (
	"errors"
	"os"
)

// ErrMissing indicates a required configuration value is absent. It is
// returned by the operation that needs the value, not at construction time.
var ErrMissing = errors.New("missing configuration")

// DefaultMaxResults bounds how many messages one run may fetch.
const DefaultMaxResults = 50

// Config carries the environment-supplied settings consumed by the agent.
// Fields may be empty; consumers validate lazily.
type Config struct {
	OllamaChatURL string
	OllamaModel   string
	WebhookURL    string
	MaxResults    int64
}

// FromEnv reads configuration from the process environment. Call after any
// env file has been loaded.
func FromEnv() Config {
	return Config{
		OllamaChatURL: os.Getenv("OLLAMA_CHAT_URL"),
		OllamaModel:   os.Getenv("OLLAMA_MODEL"),
		WebhookURL:    os.Getenv("DISCORD_WEBHOOK_URL"),
		MaxResults:    DefaultMaxResults,
	}
}
