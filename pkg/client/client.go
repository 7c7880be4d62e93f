// Package client is an HTTP client for a running embedsvc API server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/papercomputeco/embedsvc/pkg/collection"
)

const (
	defaultMaxRetries = 3
	defaultTimeout    = 60 * time.Second
)

// Config configures a Client.
type Config struct {
	// Target is the API server base URL, e.g. http://localhost:8000
	Target string

	MaxRetries int
	Timeout    time.Duration

	// Logger receives retry logs. Nil disables them.
	Logger *slog.Logger
}

// Client calls the embedsvc REST API.
type Client struct {
	baseURL string

	// httpClient retries idempotent reads.
	httpClient *http.Client

	// writeClient never retries: a resent POST /embed stores the batch again.
	writeClient *http.Client
}

// New returns a Client for the given target.
func New(c Config) (*Client, error) {
	if c.Target == "" {
		return nil, fmt.Errorf("api target is required")
	}
	if _, err := url.Parse(c.Target); err != nil {
		return nil, fmt.Errorf("invalid api target %q: %w", c.Target, err)
	}

	maxRetries := c.MaxRetries
	if maxRetries == 0 {
		maxRetries = defaultMaxRetries
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:     strings.TrimRight(c.Target, "/"),
		httpClient:  newHTTPClient(maxRetries, timeout, c.Logger),
		writeClient: newHTTPClient(0, timeout, c.Logger),
	}, nil
}

func newHTTPClient(maxRetries int, timeout time.Duration, logger *slog.Logger) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = maxRetries
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = nil
	if logger != nil {
		rc.Logger = logger
	}

	httpClient := rc.StandardClient()
	httpClient.Timeout = timeout
	return httpClient
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Message)
}

// Embed posts texts to /embed.
func (c *Client) Embed(ctx context.Context, texts []string) (*collection.EmbedResult, error) {
	body, err := json.Marshal(map[string][]string{"texts": texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling embed request: %w", err)
	}

	var out collection.EmbedResult
	if err := c.do(ctx, http.MethodPost, "/embed", nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search calls /search.
func (c *Client) Search(ctx context.Context, query string, topK int) (*collection.SearchResult, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("top_k", strconv.Itoa(topK))

	var out collection.SearchResult
	if err := c.do(ctx, http.MethodGet, "/search", params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Count calls /count.
func (c *Client) Count(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/count", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// GetAll calls /get_all.
func (c *Client) GetAll(ctx context.Context, includeEmbeddings bool) (*collection.Dump, error) {
	var params url.Values
	if includeEmbeddings {
		params = url.Values{"include": {"embeddings"}}
	}

	var out collection.Dump
	if err := c.do(ctx, http.MethodGet, "/get_all", params, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ping calls /ping.
func (c *Client) Ping(ctx context.Context) error {
	var out string
	return c.do(ctx, http.MethodGet, "/ping", nil, nil, &out)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body []byte, out any) error {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.httpClient
	if method != http.MethodGet && method != http.MethodHead {
		httpClient = c.writeClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
