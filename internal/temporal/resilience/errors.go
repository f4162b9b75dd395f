// Package resilience provides activity-level error classification and
// circuit breakers for the literature review pipeline's external
// dependencies (the LLM provider and the paper sources).
//
// Classification decides whether an activity failure is worth retrying.
// Temporal's RetryPolicy drives the retries themselves; permanent errors
// are marked non-retryable so the workflow fails fast instead of burning
// the retry budget on a 401 or a rejected request.
//
// Circuit breakers live in activities, not workflows: they use sync.Mutex
// and time.Now, which would violate workflow determinism. The workflow
// sees an open circuit as a transient activity error and retries after
// backoff.
package resilience

import (
	"errors"
	"strings"

	"go.temporal.io/sdk/temporal"

	"github.com/scribeworks/litreview-service/internal/domain"
	"github.com/scribeworks/litreview-service/internal/llm"
)

// ErrorCategory classifies errors into retry-relevant categories.
type ErrorCategory int

const (
	// Transient errors are temporary failures that should be retried with
	// backoff (network timeouts, rate limits, 5xx responses, open circuits).
	Transient ErrorCategory = iota

	// Permanent errors are non-recoverable: bad credentials, rejected
	// requests, validation failures. Retrying will not help.
	Permanent
)

// String returns a human-readable name for the category.
func (c ErrorCategory) String() string {
	switch c {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// transientSubstrings indicate a transient failure when the error is not
// already classified by a structured error type.
var transientSubstrings = []string{
	"timeout",
	"network",
	"connection refused",
	"connection reset",
	"circuit open",
	"rate limit",
	"service unavailable",
	"temporary",
	"deadline exceeded",
	"i/o timeout",
}

// permanentSubstrings indicate a permanent failure. Substrings are chosen to
// avoid false positives: "unauthorized" instead of "auth" (which would match
// "author"), "invalid request" instead of bare "invalid".
var permanentSubstrings = []string{
	"unauthorized",
	"authentication failed",
	"forbidden",
	"bad request",
	"not found",
	"invalid request",
	"invalid parameter",
	"validation",
	"content filter",
}

// Classify inspects err and returns its ErrorCategory.
//
// Classification priority:
//  1. Structured provider errors (llm.APIError) by status code
//  2. Domain sentinel errors
//  3. Error message substring matching, transient checked first
//  4. Default: Transient (retrying an unknown error is safer than failing)
func Classify(err error) ErrorCategory {
	if err == nil {
		return Permanent
	}

	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsTransient() {
			return Transient
		}
		return Permanent
	}

	if errors.Is(err, domain.ErrRateLimited) || errors.Is(err, domain.ErrServiceUnavailable) {
		return Transient
	}
	if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrNotFound) {
		return Permanent
	}

	msg := strings.ToLower(err.Error())
	for _, sub := range transientSubstrings {
		if strings.Contains(msg, sub) {
			return Transient
		}
	}
	for _, sub := range permanentSubstrings {
		if strings.Contains(msg, sub) {
			return Permanent
		}
	}

	return Transient
}

// ActivityError prepares err for return from a Temporal activity. Permanent
// errors come back as non-retryable application errors so the workflow's
// RetryPolicy stops immediately; transient errors pass through unchanged and
// retry as configured.
func ActivityError(err error) error {
	if err == nil {
		return nil
	}
	if Classify(err) == Permanent {
		return temporal.NewNonRetryableApplicationError(err.Error(), "permanent", err)
	}
	return err
}
