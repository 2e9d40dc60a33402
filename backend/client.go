// Package backend talks to the inventory REST API on behalf of the session
// store. Client implements auth.Backend and auth.AuthorizationHeader.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	auth "github.com/goliatone/go-auth-guard"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/google/uuid"
)

const (
	DefaultBaseURL  = "http://127.0.0.1:5000/api"
	DefaultTimeout  = 30 * time.Second
	MaxResponseSize = 1 << 20

	LoginPath       = "/login"
	PermissionsPath = "/permissions"

	HeaderRequestID = "X-Request-ID"
)

var (
	_ auth.Backend             = (*Client)(nil)
	_ auth.AuthorizationHeader = (*Client)(nil)
)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(logger auth.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUnauthorizedHandler is called when a request other than login gets
// a 401, typically Store.HandleUnauthorized
func WithUnauthorizedHandler(fn func(ctx context.Context)) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// Client is the HTTP backend
type Client struct {
	baseURL        string
	http           *http.Client
	logger         auth.Logger
	onUnauthorized func(ctx context.Context)

	mu     sync.RWMutex
	bearer string
}

// New creates a client for baseURL, an empty value uses DefaultBaseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, goerrors.New("invalid backend base url", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"base_url": baseURL})
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  nopLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// SetUnauthorizedHandler sets the 401 callback after construction, the
// store usually needs the client before it exists
func (c *Client) SetUnauthorizedHandler(fn func(ctx context.Context)) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

func (c *Client) SetBearer(token string) {
	c.mu.Lock()
	c.bearer = token
	c.mu.Unlock()
}

func (c *Client) ClearBearer() {
	c.mu.Lock()
	c.bearer = ""
	c.mu.Unlock()
}

// Bearer returns the default token attached to requests
func (c *Client) Bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bearer
}

// Login posts the credentials and decodes the token and user
func (c *Client) Login(ctx context.Context, credentials auth.Credentials) (*auth.LoginResult, error) {
	out := &auth.LoginResult{}
	if err := c.do(ctx, http.MethodPost, LoginPath, credentials, out); err != nil {
		return nil, err
	}
	return out, nil
}

type permissionsResponse struct {
	Permissions []string `json:"permissions"`
}

// FetchPermissions returns the capabilities of the bearer
func (c *Client) FetchPermissions(ctx context.Context) ([]string, error) {
	out := &permissionsResponse{}
	if err := c.do(ctx, http.MethodGet, PermissionsPath, nil, out); err != nil {
		return nil, err
	}
	return out.Permissions, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to encode request body")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build backend request")
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderRequestID, requestID)
	if token := c.Bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("API Error: %s %s request_id=%s: %v", method, path, requestID, err)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "no response from backend").
			WithTextCode(auth.TextCodeBackendUnreachable).
			WithMetadata(map[string]any{
				"method":     method,
				"path":       path,
				"request_id": requestID,
			})
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, MaxResponseSize))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read backend response").
			WithTextCode(auth.TextCodeBackendUnreachable).
			WithMetadata(map[string]any{
				"method":     method,
				"path":       path,
				"request_id": requestID,
			})
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		failure := statusError(method, path, requestID, res.StatusCode, raw)
		c.logger.Error("API Error: %s", print.MaybePrettyJSON(failure.Metadata))

		if res.StatusCode == http.StatusUnauthorized && path != LoginPath {
			c.mu.RLock()
			handler := c.onUnauthorized
			c.mu.RUnlock()
			if handler != nil {
				c.logger.Warn("Unauthorized - Logging out user")
				handler(ctx)
			}
		}
		return failure
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to decode backend response").
			WithMetadata(map[string]any{
				"method":     method,
				"path":       path,
				"request_id": requestID,
				"status":     res.StatusCode,
			})
	}
	return nil
}

func statusError(method, path, requestID string, status int, raw []byte) *goerrors.Error {
	payload := decodePayload(raw)

	message := payloadMessage(payload)
	if message == "" {
		message = fmt.Sprintf("backend responded %d %s", status, http.StatusText(status))
	}

	return goerrors.New(message, categoryForStatus(status)).
		WithTextCode(auth.TextCodeBackendFailure).
		WithCode(status).
		WithMetadata(map[string]any{
			"status":     status,
			"payload":    payload,
			"method":     method,
			"path":       path,
			"request_id": requestID,
		})
}

func categoryForStatus(status int) goerrors.Category {
	switch status {
	case http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case http.StatusForbidden:
		return goerrors.CategoryAuthz
	case http.StatusNotFound:
		return goerrors.CategoryNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return goerrors.CategoryValidation
	case http.StatusConflict:
		return goerrors.CategoryConflict
	case http.StatusTooManyRequests:
		return goerrors.CategoryRateLimit
	default:
		return goerrors.CategoryInternal
	}
}

// decodePayload returns the JSON body as a map when possible, the raw text
// otherwise
func decodePayload(raw []byte) any {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj
	}
	return string(raw)
}

func payloadMessage(payload any) string {
	obj, ok := payload.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range []string{"error", "message"} {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
