package config

import (
	"os"
	"strings"
)

// providerEnvVars maps cloud provider ids to their API key environment variables.
var providerEnvVars = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"groq":       "GROQ_API_KEY",
	"deepgram":   "DEEPGRAM_API_KEY",
	"elevenlabs": "ELEVENLABS_API_KEY",
	"mistral":    "MISTRAL_API_KEY",
	"anthropic":  "ANTHROPIC_API_KEY",
	"custom":     "VOICEINK_CUSTOM_API_KEY",
}

// Credentials resolves cloud provider API keys. Keys live in the environment
// (optionally seeded from a .env file at startup), never in settings.json.
type Credentials struct {
	lookup func(string) string
}

// NewCredentials builds an environment-backed credential source.
func NewCredentials() Credentials {
	return Credentials{lookup: os.Getenv}
}

// NewCredentialsFrom builds a credential source over a custom lookup, used in tests.
func NewCredentialsFrom(lookup func(string) string) Credentials {
	return Credentials{lookup: lookup}
}

// APIKey returns the key for a provider id, or empty when unset.
func (c Credentials) APIKey(provider string) string {
	envVar, ok := providerEnvVars[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return ""
	}
	if c.lookup == nil {
		return ""
	}
	return strings.TrimSpace(c.lookup(envVar))
}

// HasAPIKey reports whether a non-empty key is configured for provider.
func (c Credentials) HasAPIKey(provider string) bool {
	return c.APIKey(provider) != ""
}
