package router_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/handler"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/payload"
	"github.com/vasapolrittideah/chatdesk/services/chat-service/internal/testserver"
)

type apiClient struct {
	t   *testing.T
	srv *testserver.Server
}

func (c *apiClient) do(method, path string, body any, bearer string, cookie *http.Cookie) (*http.Response, []byte) {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, c.srv.URL+path, &buf)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := c.srv.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(c.t, err)

	return resp, out.Bytes()
}

func refreshCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()

	for _, c := range resp.Cookies() {
		if c.Name == handler.RefreshCookieName {
			return c
		}
	}
	t.Fatalf("response has no %s cookie", handler.RefreshCookieName)

	return nil
}

func message(t *testing.T, body []byte) string {
	t.Helper()

	var m payload.MessageResponse
	require.NoError(t, json.Unmarshal(body, &m))

	return m.Message
}

func register(t *testing.T, c *apiClient) (payload.AuthResponse, *http.Cookie) {
	t.Helper()

	resp, body := c.do(http.MethodPost, "/auth/register", payload.RegisterRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Password:  "correct horse",
	}, "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var auth payload.AuthResponse
	require.NoError(t, json.Unmarshal(body, &auth))

	return auth, refreshCookie(t, resp)
}

func TestRegisterSetsRefreshCookie(t *testing.T) {
	srv := testserver.New(t, testserver.Options{})
	c := &apiClient{t: t, srv: srv}

	resp, body := c.do(http.MethodPost, "/auth/register", payload.RegisterRequest{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Password:  "correct horse",
	}, "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	cookie := refreshCookie(t, resp)
	assert.True(t, cookie.HttpOnly)
	assert.False(t, cookie.Secure)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, int(testserver.RefreshTTL.Seconds()), cookie.MaxAge)
	assert.Equal(t, "/", cookie.Path)

	var auth payload.AuthResponse
	require.NoError(t, json.Unmarshal(body, &auth))
	assert.Equal(t, "ada@example.com", auth.User.Email)
	assert.Equal(t, "Ada", auth.User.FirstName)
	assert.NotEmpty(t, auth.User.ID)
	assert.NotEmpty(t, auth.AccessToken)
	assert.NotEmpty(t, auth.DeviceID)
	assert.NotContains(t, string(body), cookie.Value, "refresh token must not appear in JSON")
}

func TestRegisterErrors(t *testing.T) {
	srv := testserver.New(t, testserver.Options{})
	c := &apiClient{t: t, srv: srv}
	register(t, c)

	resp, body := c.do(http.MethodPost, "/auth/register", payload.RegisterRequest{
		FirstName: "Ada",
		LastName:  "Again",
		Email:     "ADA@example.com",
		Password:  "x",
	}, "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "Email already in use", message(t, body))

	resp, body = c.do(http.MethodPost, "/auth/register", map[string]string{"email": "bob@example.com"}, "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Missing required fields", message(t, body))
}

func TestLogin(t *testing.T) {
	srv := testserver.New(t, testserver.Options{})
	c := &apiClient{t: t, srv: srv}
	first, _ := register(t, c)

	resp, body := c.do(http.MethodPost, "/auth/login", payload.LoginRequest{
		Email:    "ada@example.com",
		Password: "correct horse",
	}, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	refreshCookie(t, resp)

	var auth payload.AuthResponse
	require.NoError(t, json.Unmarshal(body, &auth))
	assert.NotEqual(t, first.AccessToken, auth.AccessToken)
	assert.Equal(t, first.User.ID, auth.User.ID)

	resp, body = c.do(http.MethodPost, "/auth/login", payload.LoginRequest{
		Email:    "ada@example.com",
		Password: "wrong",
	}, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid credentials", message(t, body))
}

func TestExpiredAccessTokenIsRefreshed(t *testing.T) {
	srv := testserver.New(t, testserver.Options{})
	c := &apiClient{t: t, srv: srv}
	auth, cookie := register(t, c)

	resp, _ := c.do(http.MethodGet, "/api/me", nil, auth.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	srv.Advance(testserver.AccessTTL + time.Second)

	resp, _ = c.do(http.MethodGet, "/api/me", nil, auth.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := c.do(http.MethodPost, "/auth/refresh", struct{}{}, "", cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var refreshed payload.RefreshResponse
	require.NoError(t, json.Unmarshal(body, &refreshed))
	assert.NotEqual(t, auth.AccessToken, refreshed.AccessToken)
	assert.Equal(t, auth.DeviceID, refreshed.DeviceID)

	resp, body = c.do(http.MethodGet, "/api/me", nil, refreshed.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var me payload.MeResponse
	require.NoError(t, json.Unmarshal(body, &me))
	assert.Equal(t, auth.User.ID, me.UserID)
	assert.Equal(t, auth.DeviceID, me.DeviceID)
}

func TestRefreshIsRepeatable(t *testing.T) {
	srv := testserver.New(t, testserver.Options{})
	c := &apiClient{t: t, srv: srv}
	_, cookie := register(t, c)

	tokens := map[string]bool{}
	for range 2 {
		resp, body := c.do(http.MethodPost, "/auth/refresh", nil, "", cookie)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var refreshed payload.RefreshResponse
		require.NoError(t, json.Unmarshal(body, &refreshed))
		tokens[refreshed.AccessToken] = true
	}

	assert.Len(t, tokens, 2)
}

func TestSecondLoginRevokesFirstRefreshToken(t *testing.T) {
	srv := testserver.New(t, testserver.Options{})
	c := &apiClient{t: t, srv: srv}
	first, firstCookie := register(t, c)

	resp, _ := c.do(http.MethodPost, "/auth/login", payload.LoginRequest{
		Email:    "ada@example.com",
		Password: "correct horse",
	}, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	secondCookie := refreshCookie(t, resp)

	resp, body := c.do(http.MethodPost, "/auth/refresh", nil, "", firstCookie)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Refresh token revoked", message(t, body))

	resp, _ = c.do(http.MethodGet, "/api/me", nil, first.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = c.do(http.MethodPost, "/auth/refresh", nil, "", secondCookie)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRefreshErrors(t *testing.T) {
	srv := testserver.New(t, testserver.Options{})
	c := &apiClient{t: t, srv: srv}

	resp, body := c.do(http.MethodPost, "/auth/refresh", nil, "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Refresh token required", message(t, body))

	resp, body = c.do(http.MethodPost, "/auth/refresh", nil, "", &http.Cookie{Name: handler.RefreshCookieName, Value: "forged"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid or expired refresh token", message(t, body))
}

func TestLogoutInvalidatesBothTokens(t *testing.T) {
	srv := testserver.New(t, testserver.Options{})
	c := &apiClient{t: t, srv: srv}
	auth, cookie := register(t, c)

	resp, body := c.do(http.MethodPost, "/auth/logout", payload.LogoutRequest{AccessToken: auth.AccessToken}, "", cookie)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Logged out successfully", message(t, body))

	cleared := refreshCookie(t, resp)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)

	resp, body = c.do(http.MethodGet, "/api/me", nil, auth.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Access token expired or revoked", message(t, body))

	resp, _ = c.do(http.MethodPost, "/auth/refresh", nil, "", cookie)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLogoutErrors(t *testing.T) {
	srv := testserver.New(t, testserver.Options{})
	c := &apiClient{t: t, srv: srv}
	auth, _ := register(t, c)

	resp, body := c.do(http.MethodPost, "/auth/logout", payload.LogoutRequest{AccessToken: auth.AccessToken}, "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Refresh and Access tokens required", message(t, body))

	bogus := &http.Cookie{Name: handler.RefreshCookieName, Value: "bogus"}
	resp, body = c.do(http.MethodPost, "/auth/logout", payload.LogoutRequest{AccessToken: auth.AccessToken}, "", bogus)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid refresh token", message(t, body))
}

func TestSendMessageIsRateLimited(t *testing.T) {
	srv := testserver.New(t, testserver.Options{PerSecond: 2, PerDay: 10})
	c := &apiClient{t: t, srv: srv}
	auth, _ := register(t, c)

	send := func() (*http.Response, []byte) {
		return c.do(http.MethodPost, "/api/messages", payload.SendMessageRequest{Message: "hello"}, auth.AccessToken, nil)
	}

	for range 2 {
		resp, body := send()
		require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))
	}

	resp, body := send()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "Too many requests per second", message(t, body))
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	srv.Advance(time.Second)
	resp, body = send()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

	var receipt payload.SendMessageResponse
	require.NoError(t, json.Unmarshal(body, &receipt))
	assert.NotEmpty(t, receipt.MessageID)

	resp, _ = c.do(http.MethodPost, "/api/messages", payload.SendMessageRequest{Message: "hi"}, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	srv := testserver.New(t, testserver.Options{})
	c := &apiClient{t: t, srv: srv}

	resp, _ := c.do(http.MethodGet, "/healthz", nil, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := c.do(http.MethodGet, "/readyz", nil, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `"redis":"ok"`))

	srv.Redis.Close()
	resp, _ = c.do(http.MethodGet, "/readyz", nil, "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
