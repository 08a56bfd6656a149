// Copyright 2026 AssessHub Authors
// Licensed under the EUPL-1.2

// Package client is the resilient API client for the assessment platform.
// Every call is wrapped with a cancellation budget, classification-aware
// retry with exponential backoff, and a single CSRF-refresh-and-replay
// cycle. Rate limiting and required-verification responses surface as
// ordinary return values, not errors, so callers can branch on expected
// business states without exception-style control flow.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/assesshub/platform/internal/apperr"
)

const (
	// DefaultTimeout is the per-call cancellation budget.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries is the number of retries after a transient
	// failure, for a total of three attempts per call.
	DefaultMaxRetries = 2
	// DefaultRetryWaitMin is the first backoff delay.
	DefaultRetryWaitMin = 500 * time.Millisecond
	// DefaultRetryWaitMax caps the backoff delay.
	DefaultRetryWaitMax = 8 * time.Second

	headerCSRF = "X-CSRF-Token"

	csrfTokenPath = "/api/auth/csrf-token"
)

// maxResponseSize bounds buffered response bodies.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Config is used to configure the creation of the client.
type Config struct {
	// Address is the base URL of the platform API.
	Address string

	// HTTPClient is the underlying HTTP client. A pooled cleanhttp
	// client is used when nil.
	HTTPClient *http.Client

	// Timeout is the default per-call budget. DefaultTimeout when zero.
	Timeout time.Duration

	// MaxRetries is the number of times to retry a transient failure
	// after the initial attempt. Negative disables retries; zero means
	// DefaultMaxRetries.
	MaxRetries int

	// RetryWaitMin and RetryWaitMax bound the exponential backoff.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() *Config {
	return &Config{
		Timeout:      DefaultTimeout,
		MaxRetries:   DefaultMaxRetries,
		RetryWaitMin: DefaultRetryWaitMin,
		RetryWaitMax: DefaultRetryWaitMax,
	}
}

// Response is the typed result of a call. Exactly one of the three
// shapes applies: ordinary payload data, a rate-limit signal, or a
// required-verification signal.
type Response struct {
	// Status is the HTTP status of the final attempt.
	Status int
	// Data is the raw response payload for 2xx results.
	Data json.RawMessage
	// RateLimited is set for 429 responses. The caller decides whether
	// and when to retry; blind retry against a rate limiter amplifies
	// load.
	RateLimited bool
	// RetryAfter is the server's hint in seconds, when present.
	RetryAfter *int
	// VerificationRequired is set when the server demands email
	// verification before the operation may proceed.
	VerificationRequired bool
}

// Decode unmarshals the payload into v.
func (r *Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return errors.New("client: empty response payload")
	}
	return json.Unmarshal(r.Data, v)
}

// envelope mirrors the server's failure envelope.
type envelope struct {
	Success                   bool   `json:"success"`
	Message                   string `json:"message"`
	Code                      string `json:"code"`
	RequiresEmailVerification bool   `json:"requiresEmailVerification"`
	RateLimited               bool   `json:"rateLimited"`
	RetryAfter                *int   `json:"retryAfter"`
}

// Client is the resilient request orchestrator.
type Client struct {
	address string
	http    *retryablehttp.Client
	timeout time.Duration

	mu        sync.RWMutex
	authToken string
	csrfToken string
}

// New creates a Client from the given config.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Address == "" {
		return nil, errors.New("client: address must be set")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	waitMin := cfg.RetryWaitMin
	if waitMin <= 0 {
		waitMin = DefaultRetryWaitMin
	}
	waitMax := cfg.RetryWaitMax
	if waitMax <= 0 {
		waitMax = DefaultRetryWaitMax
	}

	base := cfg.HTTPClient
	if base == nil {
		base = cleanhttp.DefaultPooledClient()
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = base
	rc.RetryMax = maxRetries
	rc.RetryWaitMin = waitMin
	rc.RetryWaitMax = waitMax
	rc.Logger = nil
	rc.CheckRetry = transientRetryPolicy
	rc.Backoff = exponentialBackoff
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		address: strings.TrimRight(cfg.Address, "/"),
		http:    rc,
		timeout: timeout,
	}, nil
}

// SetAuthToken stores the bearer token attached to subsequent calls.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	c.authToken = token
	c.mu.Unlock()
}

// SetCSRFToken stores the CSRF token attached to subsequent calls.
func (c *Client) SetCSRFToken(token string) {
	c.mu.Lock()
	c.csrfToken = token
	c.mu.Unlock()
}

// ClearCredentials drops both tokens. Called automatically on 401 so the
// caller is forced to re-authenticate.
func (c *Client) ClearCredentials() {
	c.mu.Lock()
	c.authToken = ""
	c.csrfToken = ""
	c.mu.Unlock()
}

func (c *Client) tokens() (auth, csrf string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authToken, c.csrfToken
}

// CallOption tweaks a single call.
type CallOption func(*callOptions)

type callOptions struct {
	timeout time.Duration
}

// WithTimeout overrides the call's cancellation budget; shorter for
// latency-sensitive calls, longer for known-slow external operations.
func WithTimeout(d time.Duration) CallOption {
	return func(o *callOptions) {
		o.timeout = d
	}
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, opts ...CallOption) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, opts...)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any, opts ...CallOption) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, opts...)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any, opts ...CallOption) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, opts...)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts ...CallOption) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, opts...)
}

// Do executes one logical call: budget the context, attach credentials,
// retry transient failures with backoff, translate special statuses into
// typed results, and replay once after a CSRF refresh when the server
// rejects the token.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts ...CallOption) (*Response, error) {
	options := callOptions{timeout: c.timeout}
	for _, opt := range opts {
		opt(&options)
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, apperr.Wrap(apperr.Validation, "encode request body", err)
		}
	}

	// The timer always wins: once it fires, in-flight attempts and
	// backoff waits abort promptly. cancel is deferred so the timer is
	// released on every exit path.
	ctx, cancel := context.WithTimeout(ctx, options.timeout)
	defer cancel()

	return c.call(ctx, method, path, payload, false)
}

// call runs one attempt cycle. replayed guards the CSRF replay: the
// nested attempt can never trigger a second refresh.
func (c *Client) call(ctx context.Context, method, path string, payload []byte, replayed bool) (*Response, error) {
	resp, err := c.attempt(ctx, method, path, payload)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return &Response{Status: resp.StatusCode, Data: raw}, nil
	}

	var env envelope
	_ = json.Unmarshal(raw, &env)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		c.ClearCredentials()
		return nil, apperr.New(apperr.Unauthenticated, messageOr(env, "authentication required"))

	case http.StatusForbidden:
		if env.RequiresEmailVerification {
			return &Response{Status: resp.StatusCode, VerificationRequired: true}, nil
		}
		if isCSRFFailure(env) && !replayed {
			if refreshErr := c.RefreshCSRFToken(ctx); refreshErr != nil {
				return nil, refreshErr
			}
			return c.call(ctx, method, path, payload, true)
		}
		if isCSRFFailure(env) {
			return nil, apperr.New(apperr.CsrfInvalidOrExpired, messageOr(env, "csrf validation failed"))
		}
		return nil, apperr.New(apperr.InsufficientPermission, messageOr(env, "permission denied"))

	case http.StatusTooManyRequests:
		retryAfter := env.RetryAfter
		if retryAfter == nil {
			if v, parseErr := strconv.Atoi(resp.Header.Get("Retry-After")); parseErr == nil {
				retryAfter = &v
			}
		}
		return &Response{Status: resp.StatusCode, RateLimited: true, RetryAfter: retryAfter}, nil

	case http.StatusNotFound:
		return nil, apperr.New(apperr.NotFound, messageOr(env, "not found"))

	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return nil, apperr.New(apperr.Validation, messageOr(env, "invalid request"))

	default:
		return nil, apperr.Newf(apperr.InternalError, "request failed with status %d: %s",
			resp.StatusCode, messageOr(env, http.StatusText(resp.StatusCode)))
	}
}

// attempt issues the HTTP request through the retrying transport.
func (c *Client) attempt(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.address+path, body)
	if err != nil {
		return nil, err
	}

	authToken, csrfToken := c.tokens()
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	if csrfToken != "" {
		req.Header.Set(headerCSRF, csrfToken)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.http.Do(req)
}

// RefreshCSRFToken fetches a fresh token from the issuance endpoint and
// stores it for subsequent calls.
func (c *Client) RefreshCSRFToken(ctx context.Context) error {
	resp, err := c.attempt(ctx, http.MethodGet, csrfTokenPath, nil)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperr.Newf(apperr.CsrfInvalidOrExpired, "csrf refresh failed with status %d", resp.StatusCode)
	}

	token := resp.Header.Get(headerCSRF)
	if token == "" {
		var payload struct {
			CSRFToken string `json:"csrfToken"`
		}
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if readErr == nil {
			_ = json.Unmarshal(raw, &payload)
		}
		token = payload.CSRFToken
	}
	if token == "" {
		return apperr.New(apperr.CsrfInvalidOrExpired, "csrf refresh returned no token")
	}

	c.SetCSRFToken(token)
	return nil
}

// transientRetryPolicy retries network-level failures and 5xx responses.
// 4xx classes (auth, validation, not-found, permission) are permanent and
// fail immediately; a fired cancellation always stops the attempt loop.
func transientRetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp != nil && resp.StatusCode >= 500 {
		return true, nil
	}
	return false, nil
}

// exponentialBackoff doubles the delay per attempt, capped at max. The
// wait itself is cancelled by the request context inside retryablehttp,
// so a timeout during backoff still terminates promptly.
func exponentialBackoff(min, max time.Duration, attemptNum int, _ *http.Response) time.Duration {
	delay := min << uint(attemptNum)
	if delay > max || delay <= 0 {
		return max
	}
	return delay
}

// classifyTransportError maps transport failures onto the closed error
// taxonomy: timeout and cancellation are permanent, everything else at
// this layer is a transient network failure that already exhausted its
// retries.
func classifyTransportError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.Timeout, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return apperr.Wrap(apperr.Cancelled, "request cancelled", err)
	default:
		return apperr.Wrap(apperr.NetworkTransient, "network failure", err)
	}
}

func messageOr(env envelope, fallback string) string {
	if env.Message != "" {
		return env.Message
	}
	return fallback
}

// isCSRFFailure recognizes the server's CSRF rejection by its stable code
// first, falling back to the message for older servers.
func isCSRFFailure(env envelope) bool {
	switch env.Code {
	case apperr.CsrfMissing.String(), apperr.CsrfInvalidOrExpired.String():
		return true
	}
	return strings.Contains(strings.ToLower(env.Message), "csrf")
}
