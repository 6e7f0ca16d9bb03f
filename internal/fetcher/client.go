package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const defaultAttempts = 3

// StatusError reports a non-2xx response.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("get %s: status %s", e.URL, e.Status)
}

// Retryable reports whether the request may succeed when repeated.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Client performs rate-limited GET requests with retries. Transport
// failures, 429 and 5xx responses are retried; other statuses fail at
// once.
type Client struct {
	HTTP     *http.Client
	Limiter  *rate.Limiter
	Header   http.Header
	Attempts int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
	Logger  *slog.Logger
}

// NewClient returns a client limited to rps requests per second. A
// non-positive rps disables the limit.
func NewClient(rps float64) *Client {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &Client{
		HTTP:     http.DefaultClient,
		Limiter:  rate.NewLimiter(limit, 1),
		Header:   make(http.Header),
		Attempts: defaultAttempts,
		Backoff:  time.Second,
	}
}

// Get returns the body of url.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	attempts := c.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if c.Logger != nil {
				c.Logger.Warn("retrying request", "url", url, "attempt", attempt+1, "error", lastErr)
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.Backoff):
			}
		}

		var body []byte
		body, lastErr = c.get(ctx, url)
		if lastErr == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, lastErr
		}
		var se *StatusError
		if errors.As(lastErr, &se) && !se.Retryable() {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// GetJSON decodes the body of url into out.
func (c *Client) GetJSON(ctx context.Context, url string, out any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range c.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: url, Code: resp.StatusCode, Status: resp.Status}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return body, nil
}
