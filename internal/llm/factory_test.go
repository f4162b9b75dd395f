package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_Gemini(t *testing.T) {
	client, err := NewClient(context.Background(), FactoryConfig{
		Provider:    "gemini",
		Temperature: 0.7,
		Timeout:     30 * time.Second,
		MaxRetries:  3,
		Gemini: GeminiConfig{
			APIKey: "test-key",
			Model:  "gemini-1.5-flash-8b",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, client)

	assert.Equal(t, "gemini", client.Provider())
	assert.Equal(t, "gemini-1.5-flash-8b", client.Model())
}

func TestNewClient_OpenAI(t *testing.T) {
	client, err := NewClient(context.Background(), FactoryConfig{
		Provider:    "openai",
		Temperature: 0.7,
		Timeout:     30 * time.Second,
		MaxRetries:  3,
		OpenAI: OpenAIConfig{
			APIKey: "test-key",
			Model:  "gpt-4o-mini",
		},
	})
	require.NoError(t, err)
	require.NotNil(t, client)

	assert.Equal(t, "openai", client.Provider())
	assert.Equal(t, "gpt-4o-mini", client.Model())
}

func TestNewClient_Unknown(t *testing.T) {
	client, err := NewClient(context.Background(), FactoryConfig{
		Provider: "anthropic",
	})
	require.Error(t, err)
	assert.Nil(t, client)
	assert.Contains(t, err.Error(), "unsupported LLM provider")
}

func TestNewClient_EmptyProvider(t *testing.T) {
	client, err := NewClient(context.Background(), FactoryConfig{})
	require.Error(t, err)
	assert.Nil(t, client)
}
