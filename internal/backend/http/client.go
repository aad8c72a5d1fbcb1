package http

import (
	"context"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// StatusError is returned for responses with status >= 400
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error %d for %s %s: %s", e.Code, e.Method, e.URL, e.Body)
}

// Client wraps resty.Client with retry, timeout and debug logging
type Client struct {
	resty      *resty.Client
	maxRetries int
	timeout    time.Duration
	logger     *slog.Logger
}

// ClientConfig holds configuration for the HTTP client
type ClientConfig struct {
	// Timeout of 0 means the default; negative means no overall timeout,
	// which streaming callers need
	Timeout time.Duration
	// MaxRetries of 0 means the default; negative disables retries
	MaxRetries int
	RetryWait  time.Duration
	UserAgent  string
	Debug      bool
	Logger     *slog.Logger
}

// DefaultClientConfig returns sensible defaults
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:    30 * time.Second,
		MaxRetries: 3,
		RetryWait:  time.Second,
		UserAgent:  "yoru/1.0",
	}
}

// NewClient creates a new HTTP client
func NewClient(config ClientConfig) *Client {
	switch {
	case config.Timeout == 0:
		config.Timeout = 30 * time.Second
	case config.Timeout < 0:
		config.Timeout = 0
	}
	switch {
	case config.MaxRetries == 0:
		config.MaxRetries = 3
	case config.MaxRetries < 0:
		config.MaxRetries = 0
	}
	if config.RetryWait == 0 {
		config.RetryWait = time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "yoru/1.0"
	}

	restyClient := resty.New()
	if config.Timeout > 0 {
		restyClient.SetTimeout(config.Timeout)
	}
	restyClient.
		SetRetryCount(config.MaxRetries).
		SetRetryWaitTime(config.RetryWait).
		SetRetryMaxWaitTime(5*config.RetryWait).
		SetHeader("User-Agent", config.UserAgent).
		SetHeader("Accept", "application/json, */*")

	restyClient.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			// a cancelled caller is not a transient failure
			return r == nil || r.Request == nil || r.Request.Context().Err() == nil
		}
		return r.StatusCode() >= 500 || r.StatusCode() == nethttp.StatusTooManyRequests
	})

	client := &Client{
		resty:      restyClient,
		maxRetries: config.MaxRetries,
		timeout:    config.Timeout,
		logger:     config.Logger,
	}

	if config.Debug && config.Logger != nil {
		restyClient.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
			client.logger.Debug("http request", "method", r.Method, "url", r.URL)
			return nil
		})
		restyClient.OnAfterResponse(func(_ *resty.Client, r *resty.Response) error {
			client.logResponse(r)
			return nil
		})
	}

	return client
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*resty.Response, error) {
	return c.do(ctx, nethttp.MethodGet, url, nil, headers)
}

// Post performs a POST request with a JSON body
func (c *Client) Post(ctx context.Context, url string, body interface{}, headers map[string]string) (*resty.Response, error) {
	return c.do(ctx, nethttp.MethodPost, url, body, headers)
}

func (c *Client) do(ctx context.Context, method, url string, body interface{}, headers map[string]string) (*resty.Response, error) {
	req := c.resty.R().SetContext(ctx).SetHeaders(headers)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, fmt.Errorf("%s request failed for %s: %w", method, url, err)
	}

	if resp.StatusCode() >= 400 {
		return resp, &StatusError{Method: method, URL: url, Code: resp.StatusCode(), Body: truncate(resp.String(), 200)}
	}

	return resp, nil
}

// Open issues a request whose body is left unread for streaming. The
// caller must close resp.Body. Status codes are not checked.
func (c *Client) Open(ctx context.Context, method, url string, headers map[string]string) (*nethttp.Response, error) {
	resp, err := c.resty.R().
		SetContext(ctx).
		SetHeaders(headers).
		SetDoNotParseResponse(true).
		Execute(method, url)
	if err != nil {
		return nil, fmt.Errorf("%s request failed for %s: %w", method, url, err)
	}
	return resp.RawResponse, nil
}

// SetHeader sets a default header for all requests
func (c *Client) SetHeader(key, value string) {
	c.resty.SetHeader(key, value)
}

// GetTimeout returns the configured timeout
func (c *Client) GetTimeout() time.Duration {
	return c.timeout
}

// GetMaxRetries returns the configured max retries
func (c *Client) GetMaxRetries() int {
	return c.maxRetries
}

func (c *Client) logResponse(r *resty.Response) {
	c.logger.Debug("http response",
		"status", r.StatusCode(),
		"url", r.Request.URL,
		"time", r.Time(),
		"body", truncate(r.String(), 1000),
	)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}
