package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError carries the provider, HTTP status, and provider-reported detail
// for a failed LLM call. Retry logic inspects it through IsTransient.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string

	// Type and Code are the provider's own classifications; either may
	// be empty depending on the backend.
	Type string
	Code string
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: API error (status %d, type %s): %s", e.Provider, e.StatusCode, e.Type, e.Message)
}

// IsTransient reports whether a retry might succeed. Rate limits, 5xx
// responses, and status 0 (no HTTP response received) all qualify.
func (e *APIError) IsTransient() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	default:
		return e.StatusCode >= 500
	}
}

func isTransientError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsTransient()
}
