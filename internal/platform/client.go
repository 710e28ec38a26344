package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rxaigc/vibesub/internal/log"
	"github.com/rxaigc/vibesub/internal/version"
)

// RequestIDHeader carries a per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Client is the VibeSub platform API client. Its HTTP client carries the
// cookie jar that holds the server session, so every call is made "with
// credentials".
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	contract *Contract
	logger   *log.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithCookieJar sets the jar that stores the server session cookie
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) { c.HTTPClient.Jar = jar }
}

// WithTimeout sets the transport timeout. Zero keeps the transport default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.HTTPClient.Timeout = d }
}

// WithContract validates every successful response against contract
func WithContract(contract *Contract) Option {
	return func(c *Client) { c.contract = contract }
}

// WithLogger sets the client logger
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a new platform API client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: log.Component("platform"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doRequest performs an HTTP request. bearer is sent as an Authorization
// header when non-empty.
func (c *Client) doRequest(ctx context.Context, method, path string, body any, bearer string) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.GetInfo().UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "platform request failed",
			"method", method, "path", path, "request_id", requestID, "error", err.Error())
		return nil, fmt.Errorf("failed to perform request: %w", err)
	}

	c.logger.DebugContext(ctx, "platform request",
		"method", method, "path", path, "status", resp.StatusCode,
		"request_id", requestID, "duration", time.Since(start))
	return resp, nil
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// parseResponse checks the status, validates the body against the
// contract and decodes it into target.
func (c *Client) parseResponse(resp *http.Response, method, path string, target any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}

		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil {
			switch {
			case errResp.Error != "":
				statusErr.Message = errResp.Error
			case errResp.Message != "":
				statusErr.Message = errResp.Message
			case errResp.Detail != "":
				statusErr.Message = errResp.Detail
			}
		}
		if statusErr.Message == "" {
			statusErr.Message = strings.TrimSpace(string(body))
		}
		return statusErr
	}

	if c.contract != nil {
		if err := c.contract.ValidateResponse(method, path, resp.StatusCode, body); err != nil {
			return err
		}
	}

	if target != nil && len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
