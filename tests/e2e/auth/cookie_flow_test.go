package auth

import (
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/embla/internal/service/user"
	"github.com/nkiryanov/embla/internal/testutil"
	"github.com/nkiryanov/embla/tests/e2e"
)

const (
	CSRFURL    = "/api/auth/csrf/"
	TokenURL   = "/api/auth/token/"
	RefreshURL = "/api/auth/token/refresh/"
	VerifyURL  = "/api/auth/token/verify/"
	LogoutURL  = "/api/auth/logout/"
	MeURL      = "/api/users/me/"
)

// Browser like client: keeps cookies between requests
type client struct {
	t      *testing.T
	http   *http.Client
	srvURL string
}

func newClient(t *testing.T, srvURL string) *client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &client{t: t, http: &http.Client{Jar: jar}, srvURL: srvURL}
}

func (c *client) do(method string, path string, body string, header ...string) (int, string) {
	c.t.Helper()

	req, err := http.NewRequestWithContext(c.t.Context(), method, c.srvURL+path, strings.NewReader(body))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	b, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode, string(b)
}

func (c *client) cookie(name string) string {
	u, err := url.Parse(c.srvURL)
	require.NoError(c.t, err)

	for _, ck := range c.http.Jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

func Test_CookieFlow(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	e2e.ServeWithTx(pg.Pool, t, func(tx pgx.Tx, srvURL string, s e2e.Services) {
		u, err := s.UserService.CreateUser(t.Context(), user.NewUser{
			Username: "nk",
			Password: "StrongEnoughPassword",
			Email:    "nk@example.com",
			Name:     "Nikita",
		})
		require.NoError(t, err)

		c := newClient(t, srvURL)

		t.Run("csrf cookie", func(t *testing.T) {
			code, body := c.do(http.MethodGet, CSRFURL, "")

			require.Equal(t, http.StatusOK, code)
			require.JSONEq(t, `{"detail": "CSRF cookie set"}`, body)
			require.Len(t, c.cookie("csrftoken"), 64)
		})

		t.Run("anonymous", func(t *testing.T) {
			code, _ := c.do(http.MethodGet, MeURL, "")

			require.Equal(t, http.StatusUnauthorized, code)
		})

		t.Run("login", func(t *testing.T) {
			code, body := c.do(http.MethodPost, TokenURL, `{"username": "nk", "password": "StrongEnoughPassword"}`)

			require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `{"detail": "Login successful"}`, body)
			require.NotEmpty(t, c.cookie("access_token"))
			require.NotEmpty(t, c.cookie("refresh_token"))
		})

		t.Run("me", func(t *testing.T) {
			code, body := c.do(http.MethodGet, MeURL, "")

			require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
			require.Contains(t, body, `"username":"nk"`)
			require.Contains(t, body, fmt.Sprintf(`"id":%d`, u.ID))
		})

		t.Run("update self", func(t *testing.T) {
			code, body := c.do(http.MethodPatch, fmt.Sprintf("/api/users/%d/", u.ID), `{"name": "N. K."}`)

			require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)

			var name string
			err := tx.QueryRow(t.Context(), "SELECT name FROM users WHERE id = $1", u.ID).Scan(&name)
			require.NoError(t, err)
			require.Equal(t, "N. K.", name)
		})

		t.Run("refresh with cookie only", func(t *testing.T) {
			code, body := c.do(http.MethodPost, RefreshURL, "")

			require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
			require.JSONEq(t, `{"detail": "Token refreshed"}`, body)
		})

		t.Run("verify with cookie only", func(t *testing.T) {
			code, body := c.do(http.MethodPost, VerifyURL, "")

			require.Equal(t, http.StatusOK, code)
			require.JSONEq(t, `{}`, body)
		})

		t.Run("logout", func(t *testing.T) {
			code, body := c.do(http.MethodPost, LogoutURL, "")

			require.Equal(t, http.StatusOK, code)
			require.JSONEq(t, `{"detail": "Logged out"}`, body)
			require.Empty(t, c.cookie("access_token"))
			require.Empty(t, c.cookie("refresh_token"))

			code, _ = c.do(http.MethodGet, MeURL, "")
			require.Equal(t, http.StatusUnauthorized, code)
		})
	})
}

func Test_BearerHeader(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	e2e.ServeWithTx(pg.Pool, t, func(_ pgx.Tx, srvURL string, s e2e.Services) {
		u, err := s.UserService.CreateUser(t.Context(), user.NewUser{Username: "nk", Password: "StrongEnoughPassword"})
		require.NoError(t, err)

		pair, err := s.TokenManager.GeneratePair(u)
		require.NoError(t, err)

		c := newClient(t, srvURL)

		t.Run("header token", func(t *testing.T) {
			code, body := c.do(http.MethodGet, MeURL, "", "Authorization", "Bearer "+pair.Access.Value)

			require.Equalf(t, http.StatusOK, code, "not expected code. Body: %s", body)
			require.Contains(t, body, `"username":"nk"`)
		})

		t.Run("refresh token is not access token", func(t *testing.T) {
			code, body := c.do(http.MethodGet, MeURL, "", "Authorization", "Bearer "+pair.Refresh.Value)

			require.Equal(t, http.StatusUnauthorized, code)
			require.JSONEq(t, `{"detail": "Given token not valid for any token type", "code": "token_not_valid"}`, body)
		})

		t.Run("other scheme is anonymous", func(t *testing.T) {
			code, body := c.do(http.MethodGet, MeURL, "", "Authorization", "Basic bms6cGFzcw==")

			require.Equal(t, http.StatusUnauthorized, code)
			require.JSONEq(t, `{"detail": "Authentication credentials were not provided."}`, body)
		})
	})
}
