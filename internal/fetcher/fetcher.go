// Package fetcher downloads registry exports over HTTP with rate limiting
// and retry on transient failures.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/samplegeo/atlas-cli/internal/resilience"
)

// Options configure the HTTP client.
type Options struct {
	UserAgent string
	Timeout   time.Duration

	// MaxRetries is the total number of attempts per request.
	MaxRetries int

	// RateLimit bounds outgoing requests per second, with Burst extra
	// capacity. Registry APIs throttle aggressively, so the defaults stay
	// conservative.
	RateLimit rate.Limit
	Burst     int
}

// Client fetches registry exports. Requests pass through a rate limiter and
// transient failures are retried with exponential backoff.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	opts    Options
}

func New(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = "atlas-cli/1.0"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RateLimit == 0 {
		opts.RateLimit = 5
	}
	if opts.Burst == 0 {
		opts.Burst = 5
	}

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = opts.MaxRetries
	retry.OnRetry = resilience.RetryLogger("fetcher", "get")

	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		http:    &http.Client{Timeout: opts.Timeout, Transport: transport},
		limiter: rate.NewLimiter(opts.RateLimit, opts.Burst),
		retry:   retry,
		opts:    opts,
	}
}

// Fetch GETs the URL and returns the whole response body. Responses with a
// transient status (429, 5xx) are retried; any other non-200 status fails
// immediately.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: create request")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: get %s", rawURL)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(
				eris.Errorf("fetcher: http %d from %s", resp.StatusCode, rawURL), resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, rawURL)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: read body from %s", rawURL)
		}
		return body, nil
	})
}
