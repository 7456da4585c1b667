// Package httpclient provides the retrying HTTP client used by LLM
// providers. Rate-limit responses honor the server's Retry-After or
// reset headers when present; transient server errors get a short
// fixed backoff; everything else fails immediately.
package httpclient

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"
)

// Strategy selects how a failed attempt is retried.
type Strategy int

const (
	// NoRetry fails immediately.
	NoRetry Strategy = iota

	// Backoff retries transient server errors with a short fixed delay.
	Backoff

	// RateLimited retries honoring server-provided reset timing, with
	// exponential backoff as the fallback.
	RateLimited
)

// RateLimit carries the retry timing a server advertised in its
// response headers.
type RateLimit struct {
	RetryAfter time.Duration
	ResetAt    time.Time
}

// HeaderParser extracts rate-limit timing from response headers.
// Providers install API-specific parsers.
type HeaderParser func(http.Header) RateLimit

// ParseRetryAfter reads the standard Retry-After header (seconds form).
func ParseRetryAfter(h http.Header) RateLimit {
	var info RateLimit
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			info.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return info
}

// StrategyFor maps a status code to a retry strategy.
func StrategyFor(statusCode int) Strategy {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return RateLimited
	case http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusGatewayTimeout:
		return Backoff
	default:
		return NoRetry
	}
}

// StatusError reports a non-2xx response that was not retried or
// exhausted its retries.
type StatusError struct {
	StatusCode int
	Attempts   int
}

func (e *StatusError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("HTTP %d after %d attempts", e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Client wraps http.Client with status-aware retries.
type Client struct {
	client       *http.Client
	maxRetries   int
	baseDelay    time.Duration
	headerParser HeaderParser
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.Timeout = d }
}

// WithMaxRetries caps the number of retries after the first attempt.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithBaseDelay sets the base delay for exponential backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) { c.baseDelay = d }
}

// WithHeaderParser installs an API-specific rate-limit header parser.
func WithHeaderParser(p HeaderParser) Option {
	return func(c *Client) { c.headerParser = p }
}

// New creates a retrying client with sane defaults.
func New(opts ...Option) *Client {
	c := &Client{
		client:       &http.Client{Timeout: 120 * time.Second},
		maxRetries:   4,
		baseDelay:    time.Second,
		headerParser: ParseRetryAfter,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do executes the request, retrying per StrategyFor. Requests with a
// body must set GetBody (http.NewRequest does for common body types)
// so retries can replay it. Cancellation is honored through the
// request's context, both during attempts and while backing off.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var lastStatus int
	attempts := 0

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("recreating request body for retry: %w", err)
			}
			req.Body = body
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		attempts++

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		lastStatus = resp.StatusCode
		strategy := StrategyFor(resp.StatusCode)
		if strategy == NoRetry || attempt == c.maxRetries {
			return resp, &StatusError{StatusCode: resp.StatusCode, Attempts: attempts}
		}

		var limit RateLimit
		if c.headerParser != nil {
			limit = c.headerParser(resp.Header)
		}
		resp.Body.Close()

		delay := c.delayFor(strategy, attempt, limit)
		c.logger.Debug("retrying request",
			"status", resp.StatusCode, "delay", delay, "attempt", attempt+1, "max", c.maxRetries)

		select {
		case <-time.After(delay):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}

	return nil, &StatusError{StatusCode: lastStatus, Attempts: attempts}
}

func (c *Client) delayFor(strategy Strategy, attempt int, limit RateLimit) time.Duration {
	switch strategy {
	case RateLimited:
		if limit.RetryAfter > 0 {
			return limit.RetryAfter
		}
		if !limit.ResetAt.IsZero() {
			if d := time.Until(limit.ResetAt); d > 0 {
				return d
			}
		}
		return time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay
	case Backoff:
		return time.Duration(attempt+1) * c.baseDelay
	default:
		return 0
	}
}
