package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// Default values for the Gemini provider.
const (
	defaultGeminiModel      = "gemini-1.5-flash-8b"
	defaultGeminiRetryDelay = 2 * time.Second
)

// GeminiConfig holds the parameters needed to create a Gemini provider.
// This is defined in the llm package to avoid importing the config package.
type GeminiConfig struct {
	// APIKey is the Gemini API key.
	APIKey string
	// Model is the model identifier (e.g., "gemini-1.5-flash-8b").
	Model string
}

// GeminiProvider implements Client using the Gemini API.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float64
	maxRetries  int
	retryDelay  time.Duration
}

// NewGeminiProvider creates a new Gemini completion provider.
//
// The timeout parameter controls the HTTP client timeout for API calls.
// The maxRetries parameter controls how many times transient errors are retried.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig, temperature float64, timeout time.Duration, maxRetries int) (*GeminiProvider, error) {
	model := cfg.Model
	if model == "" {
		model = defaultGeminiModel
	}

	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	if maxRetries < 0 {
		maxRetries = 0
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}

	return &GeminiProvider{
		client:      client,
		model:       model,
		temperature: temperature,
		maxRetries:  maxRetries,
		retryDelay:  defaultGeminiRetryDelay,
	}, nil
}

// Complete sends a completion request to the Gemini API.
//
// Transient errors (429 and 5xx) are retried up to maxRetries times with
// backoff. Context cancellation is respected between retries.
func (p *GeminiProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("gemini: request has no messages")
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, msg := range req.Messages {
		contents = append(contents, genai.NewContentFromText(msg.Content, geminiRole(msg.Role)))
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSONMode {
		genCfg.ResponseMIMEType = "application/json"
	}

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			delay := p.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("gemini: context cancelled during retry wait: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, genCfg)
		if err != nil {
			apiErr := wrapGeminiError(err)
			if !apiErr.IsTransient() {
				return nil, apiErr
			}
			lastErr = apiErr
			continue
		}

		text := resp.Text()
		if text == "" {
			return nil, errors.New("gemini: empty response text")
		}

		result := &Response{
			Text:  text,
			Model: p.model,
		}
		if resp.UsageMetadata != nil {
			result.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
			result.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		}
		return result, nil
	}

	return nil, fmt.Errorf("gemini: exhausted %d retries: %w", p.maxRetries, lastErr)
}

// Provider returns the name of the LLM provider.
func (p *GeminiProvider) Provider() string {
	return "gemini"
}

// Model returns the model identifier being used.
func (p *GeminiProvider) Model() string {
	return p.model
}

// geminiRole maps a message role to the Gemini API role name.
func geminiRole(role string) genai.Role {
	if role == RoleAssistant {
		return genai.RoleModel
	}
	return genai.RoleUser
}

// wrapGeminiError converts a genai error into an APIError for uniform
// transient-error classification.
func wrapGeminiError(err error) *APIError {
	var ge genai.APIError
	if errors.As(err, &ge) {
		return &APIError{
			Provider:   "gemini",
			StatusCode: ge.Code,
			Message:    ge.Message,
			Type:       ge.Status,
		}
	}
	// No HTTP response received (network error, timeout).
	return &APIError{
		Provider: "gemini",
		Message:  err.Error(),
	}
}
