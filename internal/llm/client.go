// Package llm provides text completion clients for the language model
// providers used by the review agents.
//
// The package defines a provider-agnostic Client interface with Gemini and
// OpenAI implementations. Providers handle their own retry logic for
// transient API errors; callers are expected to pass prompts and interpret
// the returned text.
package llm

import "context"

// Message roles understood by all providers.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation message sent to the model.
type Message struct {
	// Role is the message role ("user" or "assistant").
	Role string

	// Content is the message text.
	Content string
}

// Request describes a completion request.
type Request struct {
	// System is the system instruction, if any.
	System string

	// Messages is the conversation history, oldest first.
	// At least one message is required.
	Messages []Message

	// Temperature is the sampling temperature.
	Temperature float64

	// MaxTokens limits the response length. Zero uses the provider default.
	MaxTokens int

	// JSONMode requests a JSON object response when the provider supports it.
	JSONMode bool
}

// Response is the result of a completion request.
type Response struct {
	// Text is the model's response text.
	Text string

	// Model is the model that produced the response.
	Model string

	// InputTokens is the number of prompt tokens consumed.
	InputTokens int

	// OutputTokens is the number of completion tokens produced.
	OutputTokens int
}

// TotalTokens returns the combined input and output token count.
func (r *Response) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Client is the interface implemented by all LLM providers.
type Client interface {
	// Complete sends a completion request and returns the model response.
	// Transient API errors (429, 5xx) are retried internally.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Provider returns the name of the LLM provider (e.g., "gemini", "openai").
	Provider() string

	// Model returns the model identifier being used.
	Model() string
}
