package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultUserAgent = "skinlytics-collector/1.0"

// Client is the shared HTTP layer under every adapter: base URL,
// static credential header, timeout. Retry policy deliberately lives
// in the pipeline, next to the rate limiter, not here.
type Client struct {
	rc     *resty.Client
	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates an HTTP client for one marketplace.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		rc: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", defaultUserAgent),
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithCredential sets the source-specific static credential header.
func WithCredential(header, value string) ClientOption {
	return func(c *Client) {
		if header != "" && value != "" {
			c.rc.SetHeader(header, value)
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.rc.SetTimeout(d)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// GetJSON performs a GET and decodes the JSON response into result.
func (c *Client) GetJSON(ctx context.Context, path string, query map[string]string, result any) error {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetHeader("Accept", "application/json").
		Get(path)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.IsError() {
		c.logger.Debug("source request failed",
			"path", path,
			"status", resp.StatusCode(),
		)
		return &APIError{
			StatusCode: resp.StatusCode(),
			Message:    http.StatusText(resp.StatusCode()),
			Body:       resp.Body(),
		}
	}

	if err := json.Unmarshal(resp.Body(), result); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}
