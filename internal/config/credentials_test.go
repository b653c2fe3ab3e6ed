package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAPIKeyResolvesKnownProviders(t *testing.T) {
	creds := NewCredentialsFrom(func(name string) string {
		switch name {
		case "OPENAI_API_KEY":
			return " sk-openai \n"
		case "GROQ_API_KEY":
			return "gsk-groq"
		default:
			return ""
		}
	})

	require.Equal(t, "sk-openai", creds.APIKey("openai"))
	require.Equal(t, "sk-openai", creds.APIKey("  OpenAI "))
	require.Equal(t, "gsk-groq", creds.APIKey("groq"))
	require.Empty(t, creds.APIKey("deepgram"))
	require.Empty(t, creds.APIKey("unknown-provider"))
}

func TestHasAPIKey(t *testing.T) {
	creds := NewCredentialsFrom(func(name string) string {
		if name == "MISTRAL_API_KEY" {
			return "key"
		}
		return ""
	})

	require.True(t, creds.HasAPIKey("mistral"))
	require.False(t, creds.HasAPIKey("elevenlabs"))
	require.False(t, creds.HasAPIKey(""))
}

func TestCredentialsZeroValueIsEmpty(t *testing.T) {
	var creds Credentials
	require.Empty(t, creds.APIKey("openai"))
	require.False(t, creds.HasAPIKey("openai"))
}
