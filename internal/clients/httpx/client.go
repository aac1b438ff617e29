// Package httpx wraps outbound provider calls with the retry and pacing
// behavior all price providers share: a bounded retry loop that honors
// Retry-After on rate-limit responses, and a token-bucket limiter that keeps
// sequential batch calls under informal rate budgets.
package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout     = 10 * time.Second
	defaultMaxAttempts = 5
	defaultRetryAfter  = 1 * time.Second
)

// Response is a terminal provider response. Non-2xx statuses other than
// rate limits are returned here rather than retried; the caller owns the
// status semantics (binance encodes unknown-symbol in a 400 body).
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Client performs GET requests with rate-limit backoff
type Client struct {
	http        *http.Client
	limiter     *rate.Limiter
	maxAttempts int
	log         zerolog.Logger
	sleep       func(time.Duration)
}

// Option configures a Client
type Option func(*Client)

// WithRateLimit paces requests to at most r per second with the given burst
func WithRateLimit(r float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(r), burst)
	}
}

// WithMaxAttempts bounds the retry loop
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		c.maxAttempts = n
	}
}

// WithTimeout overrides the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// New creates a fetch client
func New(log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		http:        &http.Client{Timeout: defaultTimeout},
		maxAttempts: defaultMaxAttempts,
		log:         log.With().Str("client", "httpx").Logger(),
		sleep:       time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches url, retrying on transport errors and rate-limit statuses
// (429 and binance's 418 ban response). The Retry-After header is honored
// when present, defaulting to one second. Any other response is terminal
// and returned to the caller with its body.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter wait: %w", err)
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			c.log.Warn().Err(err).Int("attempt", attempt).Str("url", url).Msg("Request failed, retrying")
			c.sleep(defaultRetryAfter)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			c.sleep(defaultRetryAfter)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot {
			wait := retryAfter(resp.Header)
			lastErr = fmt.Errorf("rate limited (status %d)", resp.StatusCode)
			c.log.Warn().
				Int("status", resp.StatusCode).
				Dur("retry_after", wait).
				Int("attempt", attempt).
				Msg("Rate limited, backing off")
			c.sleep(wait)
			continue
		}

		return &Response{
			StatusCode: resp.StatusCode,
			Body:       body,
			Header:     resp.Header,
		}, nil
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxAttempts, lastErr)
}

// retryAfter parses the Retry-After header as integer seconds, falling back
// to the default on absence or garbage
func retryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return defaultRetryAfter
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}
