package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
)

const DefaultTimeout = 30 * time.Second

// ErrUnauthorized is wrapped by every error produced from a 401 response
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response from the API
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API returned status code: %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API returned status code: %d, response: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// MessageOf returns the server supplied message of err, or fallback
func MessageOf(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

// StatusOf returns the HTTP status carried by err, or 0
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

type BaseClient struct {
	baseURL string
	client  *http.Client
	headers map[string]string

	mu             sync.RWMutex
	tokenSource    func() string
	onUnauthorized func()
}

func NewBaseClient(baseURL string) *BaseClient {
	// publicsuffix.List never makes cookiejar.New fail
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	return &BaseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
		},
		headers: map[string]string{
			"Content-Type": "application/json",
			"Accept":       "application/json",
		},
	}
}

func (c *BaseClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// SetTokenSource sets where the bearer token is read from before each request
func (c *BaseClient) SetTokenSource(source func() string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokenSource = source
}

// SetUnauthorizedHandler registers the hook run whenever a request comes back 401
func (c *BaseClient) SetUnauthorizedHandler(handler func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = handler
}

func (c *BaseClient) BaseURL() string {
	return c.baseURL
}

func (c *BaseClient) MakeRequest(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	c.mu.RLock()
	tokenSource, onUnauthorized := c.tokenSource, c.onUnauthorized
	c.mu.RUnlock()

	if tokenSource != nil {
		if token := tokenSource(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(resp.StatusCode, responseBody)
		if resp.StatusCode == http.StatusUnauthorized {
			log.Warn().
				Str("method", method).
				Str("endpoint", endpoint).
				Msg("request rejected as unauthorized")
			if onUnauthorized != nil {
				onUnauthorized()
			}
		}
		return nil, apiErr
	}

	return responseBody, nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status, Body: string(body)}

	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
	}
	return apiErr
}

func (c *BaseClient) Get(ctx context.Context, endpoint string) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodGet, endpoint, nil)
}

func (c *BaseClient) Post(ctx context.Context, endpoint string, body io.Reader) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodPost, endpoint, body)
}

func (c *BaseClient) Delete(ctx context.Context, endpoint string) ([]byte, error) {
	return c.MakeRequest(ctx, http.MethodDelete, endpoint, nil)
}

// GetJSON issues a GET and decodes the body into out
func (c *BaseClient) GetJSON(ctx context.Context, endpoint string, out interface{}) error {
	body, err := c.Get(ctx, endpoint)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// PostJSON encodes in (when non-nil), issues a POST and decodes the body into out (when non-nil)
func (c *BaseClient) PostJSON(ctx context.Context, endpoint string, in, out interface{}) error {
	return c.sendJSON(ctx, http.MethodPost, endpoint, in, out)
}

// PutJSON is PostJSON with a PUT
func (c *BaseClient) PutJSON(ctx context.Context, endpoint string, in, out interface{}) error {
	return c.sendJSON(ctx, http.MethodPut, endpoint, in, out)
}

func (c *BaseClient) sendJSON(ctx context.Context, method, endpoint string, in, out interface{}) error {
	var reader io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	body, err := c.MakeRequest(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(body, out)
}

func decode(body []byte, out interface{}) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}
	return nil
}
