package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// Envelope is the uniform response shape every backend endpoint returns.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// HTTPClient matches net/http.Client's Do signature for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestOption mutates an outgoing request before it is sent.
type RequestOption func(*http.Request)

// WithIdempotencyKey stamps the request so a retried dispatch cannot
// double-apply server-side.
func WithIdempotencyKey(key string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set("X-Idempotency-Key", key)
	}
}

// WithBearer attaches the session token issued by the validate endpoint.
func WithBearer(token string) RequestOption {
	return func(req *http.Request) {
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
}

// Client talks to the marketplace backend. Every call returns either decoded
// envelope data or a classified error; transport failures and 5xx responses
// are retried with exponential backoff, backend rejections are not.
type Client struct {
	baseURL     string
	httpClient  HTTPClient
	log         *logrus.Logger
	maxRetries  uint64
	callTimeout time.Duration
}

// NewClient builds a Client for the given base URL. A nil httpClient falls
// back to a net/http client with a 10s timeout.
func NewClient(baseURL string, httpClient HTTPClient) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  httpClient,
		log:         logrus.StandardLogger(),
		maxRetries:  2,
		callTimeout: 15 * time.Second,
	}
}

func (c *Client) WithLogger(log *logrus.Logger) *Client {
	if log != nil {
		c.log = log
	}
	return c
}

// WithMaxRetries sets how many times a failed attempt is resubmitted.
func (c *Client) WithMaxRetries(n uint64) *Client {
	c.maxRetries = n
	return c
}

// WithCallTimeout caps the total time spent on a single call, retries
// included.
func (c *Client) WithCallTimeout(d time.Duration) *Client {
	if d > 0 {
		c.callTimeout = d
	}
	return c
}

// Get fetches path and decodes the envelope data into out.
func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.do(ctx, http.MethodGet, path, nil, "", out, opts...)
}

// Post sends body as JSON to path and decodes the envelope data into out.
func (c *Client) Post(ctx context.Context, path string, body any, out any, opts ...RequestOption) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("httpapi: marshal request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, payload, "application/json", out, opts...)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string, out any, opts ...RequestOption) error {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	attempt := 0
	operation := func() error {
		attempt++
		err := c.once(ctx, method, path, body, contentType, out, opts...)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		c.log.WithFields(logrus.Fields{
			"method":  method,
			"path":    path,
			"attempt": attempt,
		}).WithError(err).Warn("request attempt failed")
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) once(ctx context.Context, method, path string, body []byte, contentType string, out any, opts ...RequestOption) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("httpapi: build request: %w", err))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp, out)
}

func decodeEnvelope(resp *http.Response, out any) error {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("httpapi: read response body: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 400 {
			return &ServerError{Status: resp.StatusCode}
		}
		return fmt.Errorf("httpapi: decode envelope: %w", err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		return &ServerError{Status: resp.StatusCode, Message: env.Message, enveloped: true}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("httpapi: decode envelope data: %w", err)
		}
	}
	return nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
