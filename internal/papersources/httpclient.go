package papersources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const defaultUserAgent = "ScribeWorks-LitReview/1.0"

// HTTPClientConfig configures the shared paper-source HTTP client.
type HTTPClientConfig struct {
	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// RateLimit is the sustained requests-per-second budget.
	RateLimit float64

	// BurstSize is how many requests may fire back to back.
	BurstSize int

	// MaxRetries is how many times a failed request is retried.
	MaxRetries int

	// RetryDelay is the wait between retries when the server gives no hint.
	RetryDelay time.Duration

	// UserAgent identifies this service to the upstream API.
	UserAgent string

	// APIKey is sent on every request when the source requires one.
	APIKey string

	// APIKeyHeader names the header carrying APIKey ("X-API-Key",
	// "Authorization").
	APIKeyHeader string
}

func (cfg *HTTPClientConfig) applyDefaults() {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 10
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = 10
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
}

// HTTPClient is the rate-limited, retrying HTTP client every paper source
// shares. Requests wait on the token bucket before going out, and 429 and
// 5xx responses are retried with Retry-After respected. Safe for concurrent
// use.
type HTTPClient struct {
	client      *http.Client
	rateLimiter *RateLimiter
	config      HTTPClientConfig
}

// NewHTTPClient builds an HTTPClient, filling zero config fields with
// defaults.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	cfg.applyDefaults()

	return &HTTPClient{
		client:      &http.Client{Timeout: cfg.Timeout},
		rateLimiter: NewRateLimiter(cfg.RateLimit, cfg.BurstSize),
		config:      cfg,
	}
}

// Do executes the request through the rate limiter, retrying on network
// errors, 429, and 5xx until MaxRetries is spent. Responses with other
// status codes are returned to the caller as-is.
//
// Retrying a request with a body requires GetBody to be set; plain GET
// requests need nothing.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.decorate(req)

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt == c.config.MaxRetries {
				return nil, lastErr
			}
			if err := c.backoff(req, c.config.RetryDelay); err != nil {
				return nil, err
			}
			continue
		}

		if !c.shouldRetry(resp.StatusCode) {
			return resp, nil
		}

		delay := c.getRetryDelay(resp)
		drainAndClose(resp)

		if attempt == c.config.MaxRetries {
			return nil, fmt.Errorf("max retries exhausted after %d attempts, last status: %d",
				c.config.MaxRetries+1, resp.StatusCode)
		}

		lastErr = fmt.Errorf("server returned status %d", resp.StatusCode)
		if err := c.backoff(req, delay); err != nil {
			return nil, err
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("unexpected error: no response received")
}

// decorate stamps the standing headers onto a request without clobbering
// anything the caller set.
func (c *HTTPClient) decorate(req *http.Request) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	if c.config.APIKey != "" && c.config.APIKeyHeader != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}
}

// backoff sleeps for delay (or until the request context ends) and rewinds
// the request body so the next attempt can resend it.
func (c *HTTPClient) backoff(req *http.Request, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
	}

	if req.Body == nil || req.GetBody == nil {
		return nil
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("cannot retry request: %w", err)
	}
	req.Body = body
	return nil
}

// shouldRetry reports whether a status code is worth another attempt.
func (c *HTTPClient) shouldRetry(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests ||
		(statusCode >= 500 && statusCode < 600)
}

// getRetryDelay picks the wait before the next attempt: the Retry-After
// header when the server sent a usable one, the configured delay otherwise.
func (c *HTTPClient) getRetryDelay(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return c.config.RetryDelay
	}

	if seconds, err := strconv.ParseInt(retryAfter, 10, 64); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return c.config.RetryDelay
	}

	// Retry-After may also be an HTTP date.
	if t, err := http.ParseTime(retryAfter); err == nil {
		if delay := time.Until(t); delay > 0 {
			return delay
		}
	}

	return c.config.RetryDelay
}

// drainAndClose consumes a response body so the connection can be reused.
func drainAndClose(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
