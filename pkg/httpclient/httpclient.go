// Package httpclient decodes JSON resources from venue REST endpoints.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"slices"
	"time"
)

// StatusError is returned when the response status is not one of the accepted ones.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Retryable reports whether the request may succeed when repeated.
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// RequestHook can decorate a request before it is sent, e.g. to sign it.
type RequestHook func(req *http.Request) error

type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	hook       RequestHook
	timeout    time.Duration

	maxRetries   int
	retryBackoff time.Duration
}

type Option func(*Client)

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      baseURL,
		logger:       slog.Default(),
		maxRetries:   0,
		retryBackoff: time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// WithTimeout sets the HTTP client timeout. It applies to a copy, so a client
// passed with WithHTTPClient is left as it was.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetries retries 429 and 5xx responses with jittered exponential backoff.
func WithRetries(max int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithRequestHook(hook RequestHook) Option {
	return func(c *Client) {
		c.hook = hook
	}
}

// BaseURL returns the URL every endpoint is resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetResource performs a GET on endpoint and decodes the JSON body into T.
func GetResource[T any](ctx context.Context, c *Client, endpoint string, query url.Values, okStatus []int) (T, error) {
	var zero T
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	body, err := c.doWithRetry(ctx, http.MethodGet, endpoint, nil, okStatus)
	if err != nil {
		return zero, err
	}
	return decode[T](body)
}

// PostResource POSTs payload as JSON to endpoint and decodes the JSON body into T.
func PostResource[T any](ctx context.Context, c *Client, endpoint string, payload any, okStatus []int) (T, error) {
	var zero T
	raw, err := json.Marshal(payload)
	if err != nil {
		return zero, fmt.Errorf("couldn't encode request body: %w", err)
	}
	body, err := c.doWithRetry(ctx, http.MethodPost, endpoint, raw, okStatus)
	if err != nil {
		return zero, err
	}
	return decode[T](body)
}

func decode[T any](body []byte) (T, error) {
	var res T
	if err := json.Unmarshal(body, &res); err != nil {
		return res, fmt.Errorf("couldn't decode response: %w", err)
	}
	return res, nil
}

func (c *Client) doWithRetry(ctx context.Context, method, endpoint string, payload []byte, okStatus []int) ([]byte, error) {
	var lastErr error
	backoff := c.retryBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// backoff * (0.5 to 1.5)
			wait := backoff / 2
			if backoff > 0 {
				wait += time.Duration(rand.Int64N(int64(backoff)))
			}
			c.logger.Debug("retrying request", "attempt", attempt, "backoff", wait, "endpoint", endpoint)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			backoff *= 2
		}

		body, err := c.do(ctx, method, endpoint, payload, okStatus)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var statusErr *StatusError
		if !errors.As(err, &statusErr) || !statusErr.Retryable() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, okStatus []int) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("couldn't create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.hook != nil {
		if err := c.hook(req); err != nil {
			return nil, fmt.Errorf("couldn't prepare request: %w", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("couldn't do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("couldn't read response: %w", err)
	}

	if !slices.Contains(okStatus, resp.StatusCode) {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	return body, nil
}
