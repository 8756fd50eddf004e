// Package rest is the JSON-over-HTTP transport shared by the mailbox
// providers. Each client bounds every call with a timeout, retries on 429
// and runs behind its own circuit breaker.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/nhle/tempinbox/internal/provider"
)

// StatusError is returned for any non-2xx response. Adapters translate it
// into the provider error taxonomy.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf(
		"unexpected status %d on %s %s", e.Code, e.Method, e.Path,
	)
}

// StatusCode returns the HTTP status carried by err, or 0 when err is not
// a StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// Options configures a Client.
type Options struct {
	// Name identifies the client in logs and breaker state changes.
	Name string

	// Timeout bounds every call, retries included.
	Timeout time.Duration

	// BreakerFailures is the number of consecutive failures that opens
	// the circuit. Zero disables tripping.
	BreakerFailures uint32

	// BreakerCooldown is how long the circuit stays open.
	BreakerCooldown time.Duration

	// MaxRetries is the number of retries on HTTP 429.
	MaxRetries int

	// HTTPClient overrides the default http.Client.
	HTTPClient *http.Client

	Logger *zap.SugaredLogger
}

// Client is a thin HTTP client for a JSON REST API.
type Client struct {
	name       string
	baseURL    string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	log        *zap.SugaredLogger
}

// NewClient creates a new client rooted at baseURL.
func NewClient(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 8 * time.Second
	}
	if opts.BreakerCooldown <= 0 {
		opts.BreakerCooldown = 30 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Name == "" {
		opts.Name = baseURL
	}

	log := opts.Logger.With("client", opts.Name)
	failures := opts.BreakerFailures

	c := &Client{
		name:       opts.Name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    opts.Timeout,
		maxRetries: opts.MaxRetries,
		httpClient: opts.HTTPClient,
		log:        log,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return failures > 0 && counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("circuit breaker state changed",
				"from", from.String(), "to", to.String())
		},
	})

	return c
}

// countsAsSuccess keeps client errors (4xx) from tripping the breaker.
// Only transport failures and 5xx responses count against the provider.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code < 500
	}
	return false
}

// BaseURL returns the root URL the client was created with.
func (c *Client) BaseURL() string { return c.baseURL }

// Get performs an HTTP GET request and unmarshals the JSON response.
func (c *Client) Get(
	ctx context.Context,
	path string,
	header http.Header,
	result interface{},
) error {
	return c.Do(ctx, http.MethodGet, path, header, nil, result)
}

// Post performs an HTTP POST request with a JSON body and unmarshals
// the JSON response.
func (c *Client) Post(
	ctx context.Context,
	path string,
	header http.Header,
	body interface{},
	result interface{},
) error {
	return c.Do(ctx, http.MethodPost, path, header, body, result)
}

// Delete performs an HTTP DELETE request, discarding any response body.
func (c *Client) Delete(
	ctx context.Context,
	path string,
	header http.Header,
) error {
	return c.Do(ctx, http.MethodDelete, path, header, nil, nil)
}

// Do runs a request through the circuit breaker under the client timeout.
// Network failures, timeouts and an open circuit come back as
// *provider.TransientError; non-2xx responses as *StatusError.
func (c *Client) Do(
	ctx context.Context,
	method string,
	path string,
	header http.Header,
	body interface{},
	result interface{},
) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, method, path, header, body, result)
	})
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState),
		errors.Is(err, gobreaker.ErrTooManyRequests):
		return &provider.TransientError{
			Op:    c.name + " temporarily unavailable",
			Cause: err,
		}
	case errors.Is(err, context.DeadlineExceeded):
		return &provider.TransientError{
			Op:    fmt.Sprintf("%s %s timed out", method, path),
			Cause: err,
		}
	}

	return err
}

// do builds the request, handles rate limiting with exponential backoff,
// and JSON (de)serialization.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	header http.Header,
	body interface{},
	result interface{},
) error {
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, vals := range header {
			for _, v := range vals {
				req.Header.Add(k, v)
			}
		}

		c.log.Debugw("request", "method", method, "path", path, "attempt", attempt)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fmt.Errorf("executing request %s %s: %w", method, path, ctxErr)
			}
			return &provider.TransientError{
				Op:    fmt.Sprintf("executing request %s %s", method, path),
				Cause: err,
			}
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return &provider.TransientError{
				Op:    "reading response body",
				Cause: readErr,
			}
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < c.maxRetries {
			lastErr = &StatusError{Method: method, Path: path, Code: resp.StatusCode}

			select {
			case <-ctx.Done():
				return fmt.Errorf("waiting to retry %s %s: %w", method, path, ctx.Err())
			case <-time.After(retryAfterDuration(resp, attempt)):
				continue
			}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{
				Method: method,
				Path:   path,
				Code:   resp.StatusCode,
				Body:   truncate(string(respBody), 512),
			}
		}

		// No content to parse (e.g. 204).
		if result == nil || resp.StatusCode == http.StatusNoContent || len(respBody) == 0 {
			return nil
		}

		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf(
				"unmarshaling response from %s %s: %w",
				method, path, err,
			)
		}

		return nil
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	// 500ms, 1s, 2s, capped at 4s.
	backoff := time.Duration(1<<uint(attempt)) * 500 * time.Millisecond
	if backoff > 4*time.Second {
		backoff = 4 * time.Second
	}
	return backoff
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
