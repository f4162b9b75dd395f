package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Default values for the OpenAI provider.
const (
	defaultOpenAIModel      = "gpt-4o-mini"
	defaultOpenAIRetryDelay = 2 * time.Second
)

// OpenAIConfig holds the parameters needed to create an OpenAI provider.
// This is defined in the llm package to avoid importing the config package.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key.
	APIKey string
	// Model is the model identifier (e.g., "gpt-4o-mini").
	Model string
	// BaseURL is the API base URL (empty means default).
	BaseURL string
}

// OpenAIProvider implements Client using the OpenAI Chat Completions API.
type OpenAIProvider struct {
	client      *openai.Client
	model       string
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
}

// NewOpenAIProvider creates a new OpenAI completion provider.
//
// The timeout parameter controls the HTTP client timeout for API calls.
// The maxRetries parameter controls how many times transient errors are retried.
func NewOpenAIProvider(cfg OpenAIConfig, temperature float64, timeout time.Duration, maxRetries int) *OpenAIProvider {
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	if maxRetries < 0 {
		maxRetries = 0
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: temperature,
		maxRetries:  maxRetries,
		retryDelay:  defaultOpenAIRetryDelay,
	}
}

// Complete sends a completion request to the OpenAI Chat Completions API.
//
// Transient errors (429 and 5xx) are retried up to maxRetries times with
// backoff. Context cancellation is respected between retries.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: request has no messages")
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openAIRole(msg.Role),
			Content: msg.Content,
		})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := p.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("openai: context cancelled during retry wait: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, err := p.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			apiErr := wrapOpenAIError(err)
			if !apiErr.IsTransient() {
				return nil, apiErr
			}
			lastErr = apiErr
			continue
		}

		if len(resp.Choices) == 0 {
			return nil, errors.New("openai: empty choices in response")
		}

		return &Response{
			Text:         resp.Choices[0].Message.Content,
			Model:        p.model,
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		}, nil
	}

	return nil, fmt.Errorf("openai: exhausted %d retries: %w", p.maxRetries, lastErr)
}

// Provider returns the name of the LLM provider.
func (p *OpenAIProvider) Provider() string {
	return "openai"
}

// Model returns the model identifier being used.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// openAIRole maps a message role to the OpenAI API role name.
func openAIRole(role string) string {
	if role == RoleAssistant {
		return openai.ChatMessageRoleAssistant
	}
	return openai.ChatMessageRoleUser
}

// wrapOpenAIError converts a go-openai error into an APIError for uniform
// transient-error classification.
func wrapOpenAIError(err error) *APIError {
	var reqErr *openai.APIError
	if errors.As(err, &reqErr) {
		apiErr := &APIError{
			Provider:   "openai",
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Message,
			Type:       reqErr.Type,
		}
		if code, ok := reqErr.Code.(string); ok {
			apiErr.Code = code
		}
		return apiErr
	}
	// No HTTP response received (network error, timeout).
	return &APIError{
		Provider: "openai",
		Message:  err.Error(),
	}
}
