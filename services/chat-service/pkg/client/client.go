package client

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
	"time"
)

// APIError is a non-2xx reply from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api: %d %s", e.StatusCode, e.Message)
}

// Client calls the chat service. Protected calls refresh an expired access
// token once and replay, coordinating with concurrent calls on the same Client.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokens      TokenStore
	coordinator *RefreshCoordinator
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the transport. A cookie jar is added when it has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTokenStore sets where the access token is kept. A store that is also
// an http.CookieJar keeps the refresh cookie too.
func WithTokenStore(s TokenStore) Option {
	return func(c *Client) {
		c.tokens = s
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.tokens == nil {
		c.tokens = NewMemoryTokenStore()
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	} else {
		hc := *c.httpClient
		c.httpClient = &hc
	}

	if c.httpClient.Jar == nil {
		if jar, ok := c.tokens.(http.CookieJar); ok {
			c.httpClient.Jar = jar
		} else {
			jar, err := cookiejar.New(nil)
			if err != nil {
				return nil, err
			}
			c.httpClient.Jar = jar
		}
	}

	c.coordinator = NewRefreshCoordinator(c.refreshAccessToken, c.tokens)

	return c, nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	return c.startSession(ctx, "/auth/register", req)
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	return c.startSession(ctx, "/auth/login", req)
}

// Logout ends the session on the server and forgets local credentials.
func (c *Client) Logout(ctx context.Context) error {
	token, err := c.tokens.Load(ctx)
	if err != nil {
		return err
	}

	if err := c.do(ctx, http.MethodPost, "/auth/logout", logoutRequest{AccessToken: token}, "", nil); err != nil {
		return err
	}

	return c.tokens.Clear(ctx)
}

func (c *Client) Me(ctx context.Context) (*Identity, error) {
	var out Identity
	if err := c.doAuthorized(ctx, http.MethodGet, "/api/me", nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (*SendMessageResponse, error) {
	var out SendMessageResponse
	if err := c.doAuthorized(ctx, http.MethodPost, "/api/messages", req, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

func (c *Client) startSession(ctx context.Context, path string, req any) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodPost, path, req, "", &out); err != nil {
		return nil, err
	}

	if err := c.tokens.Save(ctx, out.AccessToken); err != nil {
		return nil, fmt.Errorf("save access token: %w", err)
	}

	return &out, nil
}

// doAuthorized reads the access token at send time so a token refreshed by a
// concurrent call is used, and replays at most once after a refresh.
func (c *Client) doAuthorized(ctx context.Context, method, path string, body, out any) error {
	token, err := c.tokens.Load(ctx)
	if err != nil {
		return err
	}

	err = c.do(ctx, method, path, body, token, out)
	if !isUnauthorized(err) {
		return err
	}

	fresh, err := c.coordinator.Refresh(ctx, token)
	if err != nil {
		return err
	}

	err = c.do(ctx, method, path, body, fresh, out)
	if isUnauthorized(err) {
		return fmt.Errorf("%w: %v", ErrReauthenticationRequired, err)
	}

	return err
}

func (c *Client) refreshAccessToken(ctx context.Context) (string, error) {
	var out refreshResponse
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", struct{}{}, "", &out); err != nil {
		return "", err
	}

	return out.AccessToken, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, bearer string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}

		return &APIError{StatusCode: resp.StatusCode, Message: e.Message}
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func isUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}
