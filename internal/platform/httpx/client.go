// Package httpx is the shared transport for the Deputy, Xero and Vend clients:
// JSON encoding, bounded retry with exponential backoff, and request pacing.
package httpx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

var (
	ErrRetryable = errors.New("retryable api error")
	ErrFatal     = errors.New("fatal api error")
)

// APIError carries the upstream status and a trimmed response body.
type APIError struct {
	Service   string
	Method    string
	Path      string
	Status    int
	Body      string
	Retryable bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s %s: status %d: %s", e.Service, e.Method, e.Path, e.Status, e.Body)
}

func (e *APIError) Is(target error) bool {
	if target == ErrRetryable {
		return e.Retryable
	}
	if target == ErrFatal {
		return !e.Retryable
	}
	return false
}

// Classify maps an HTTP status to retryable (429, 5xx) or fatal.
func Classify(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

type Client struct {
	Service     string
	BaseURL     string
	HTTP        *http.Client
	Limiter     *rate.Limiter
	MaxAttempts int
	BaseDelay   time.Duration
	// Authorize sets auth headers on each attempt.
	Authorize func(ctx context.Context, req *http.Request) error
	// Observe is told about every attempt. Status is 0 for transport errors.
	Observe func(service string, status int, elapsed time.Duration)
	// Replayable reports whether a request may be resent after a transport
	// error, when the upstream may already have acted on it. Nil means
	// Idempotent.
	Replayable func(method, path string) bool
}

// Idempotent reports whether repeating method has no further effect.
func Idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func (c *Client) replayable(method, path string) bool {
	if c.Replayable != nil {
		return c.Replayable(method, path)
	}
	return Idempotent(method)
}

func New(service, baseURL string, timeout time.Duration) *Client {
	return &Client{
		Service:     service,
		BaseURL:     baseURL,
		HTTP:        &http.Client{Timeout: timeout},
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
	}
}

// WithRate paces requests to perMinute with a burst of burst.
func (c *Client) WithRate(perMinute, burst int) *Client {
	c.Limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
	return c
}

// Do sends body as JSON and decodes the response into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s encode request: %w", c.Service, err)
		}
	}

	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := c.BaseDelay << (attempt - 2)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		respBody, err := c.once(ctx, method, path, payload)
		if err == nil {
			if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return &APIError{Service: c.Service, Method: method, Path: path, Status: http.StatusOK, Body: "malformed json: " + err.Error()}
			}
			return nil
		}
		lastErr = err
		if !errors.Is(err, ErrRetryable) {
			return err
		}
		slog.Warn("api call retrying", "service", c.Service, "method", method, "path", path, "attempt", attempt, "err", err)
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Authorize != nil {
		if err := c.Authorize(ctx, req); err != nil {
			return nil, err
		}
	}

	started := time.Now()
	resp, err := c.HTTP.Do(req)
	if c.Observe != nil {
		status := 0
		if err == nil {
			status = resp.StatusCode
		}
		c.Observe(c.Service, status, time.Since(started))
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &APIError{Service: c.Service, Method: method, Path: path, Body: err.Error(), Retryable: c.replayable(method, path)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, &APIError{Service: c.Service, Method: method, Path: path, Status: resp.StatusCode, Body: err.Error(), Retryable: c.replayable(method, path)}
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}
	snippet := string(respBody)
	if len(snippet) > 500 {
		snippet = snippet[:500]
	}
	return nil, &APIError{
		Service:   c.Service,
		Method:    method,
		Path:      path,
		Status:    resp.StatusCode,
		Body:      snippet,
		Retryable: Classify(resp.StatusCode),
	}
}
