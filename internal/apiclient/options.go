package apiclient

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultRefreshPath is the token refresh endpoint relative to the base URL
	DefaultRefreshPath = "/auth/refresh/"

	defaultTimeout     = 60 * time.Second
	defaultUserAgent   = "cpa-front"
	defaultMaxBodySize = 10 << 20
)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each attempt, body read included
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// WithRefreshPath overrides DefaultRefreshPath
func WithRefreshPath(path string) Option {
	return func(c *Client) {
		if path != "" {
			c.refreshPath = path
		}
	}
}

// WithSessionExpired registers the callback fired when a call ends in an
// unrecoverable authentication failure. It replaces the browser redirect to the
// login page.
func WithSessionExpired(fn func(ctx context.Context, reason error)) Option {
	return func(c *Client) {
		c.onExpired = fn
	}
}

// WithRateLimit caps outgoing attempts at rps per second with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithMaxBodySize limits how much of a JSON response is read
func WithMaxBodySize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}
