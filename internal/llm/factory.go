package llm

import (
	"context"
	"fmt"
	"time"
)

// FactoryConfig mirrors the llm section of the service config without
// importing the config package, so this package stays free of
// infrastructure dependencies.
type FactoryConfig struct {
	// Provider selects the backend: "gemini" or "openai".
	Provider string

	Temperature float64
	Timeout     time.Duration
	MaxRetries  int

	Gemini GeminiConfig
	OpenAI OpenAIConfig
}

// NewClient builds a Client for the configured provider. Unknown or empty
// providers are an error.
func NewClient(ctx context.Context, cfg FactoryConfig) (Client, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiProvider(ctx, cfg.Gemini, cfg.Temperature, cfg.Timeout, cfg.MaxRetries)
	case "openai":
		return NewOpenAIProvider(cfg.OpenAI, cfg.Temperature, cfg.Timeout, cfg.MaxRetries), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
