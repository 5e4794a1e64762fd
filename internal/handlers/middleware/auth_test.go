package middleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/embla/internal/apperrors"
	"github.com/nkiryanov/embla/internal/handlers/userctx"
	"github.com/nkiryanov/embla/internal/models"
	"github.com/nkiryanov/embla/internal/service/auth"
)

// Allow to use a function as authenticator
type authFunc func(ctx context.Context, r *http.Request) (*auth.Identity, error)

func (f authFunc) Authenticate(ctx context.Context, r *http.Request) (*auth.Identity, error) {
	return f(ctx, r)
}

type errorLoggerFunc func(string, ...any)

func (f errorLoggerFunc) Error(msg string, v ...any) { f(msg, v...) }

var noopErrorLogger = errorLoggerFunc(func(string, ...any) {})

// Simple handler that writes username from context or 'anonymous'
var whoami = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id, ok := userctx.FromContext(r.Context())
	name := "anonymous"
	if ok {
		name = id.User.Username
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(name))
})

func doGet(t *testing.T, h http.Handler) (*http.Response, string) {
	t.Helper()

	srv := httptest.NewServer(h)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/test")
	require.NoError(t, err, "should make request to test server")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "should read response body")
	defer resp.Body.Close() // nolint:errcheck

	return resp, string(body)
}

func TestAuthenticate(t *testing.T) {
	t.Run("identity attached", func(t *testing.T) {
		mw := Authenticate(authFunc(func(ctx context.Context, r *http.Request) (*auth.Identity, error) {
			return &auth.Identity{User: models.User{Username: "test-user"}}, nil
		}), noopErrorLogger)

		resp, body := doGet(t, mw(whoami))

		require.Equalf(t, http.StatusOK, resp.StatusCode, "should return status OK. Resp: %s", body)
		require.Equal(t, "test-user", body, "should return username in response")
	})

	t.Run("anonymous passes through", func(t *testing.T) {
		mw := Authenticate(authFunc(func(ctx context.Context, r *http.Request) (*auth.Identity, error) {
			return nil, nil
		}), noopErrorLogger)

		resp, body := doGet(t, mw(whoami))

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "anonymous", body)
	})

	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "invalid token",
			err:      fmt.Errorf("%w: signature is invalid", apperrors.ErrInvalidToken),
			expected: `{"detail": "Given token not valid for any token type", "code": "token_not_valid"}`,
		},
		{
			name:     "malformed header",
			err:      apperrors.ErrMalformedAuthHeader,
			expected: `{"detail": "Authorization header must contain two space-delimited values", "code": "bad_authorization_header"}`,
		},
		{
			name:     "user not found",
			err:      fmt.Errorf("can't get token user. Err: %w", apperrors.ErrUserNotFound),
			expected: `{"detail": "User not found", "code": "user_not_found"}`,
		},
		{
			name:     "user inactive",
			err:      apperrors.ErrUserInactive,
			expected: `{"detail": "User is inactive", "code": "user_inactive"}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mw := Authenticate(authFunc(func(ctx context.Context, r *http.Request) (*auth.Identity, error) {
				return nil, tc.err
			}), noopErrorLogger)

			resp, body := doGet(t, mw(whoami))

			require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "should return status Unauthorized. Resp: %s", body)
			require.Equal(t, `Bearer realm="api"`, resp.Header.Get("WWW-Authenticate"))
			require.JSONEq(t, tc.expected, body)
		})
	}

	t.Run("unexpected error logged", func(t *testing.T) {
		logged := 0
		l := errorLoggerFunc(func(string, ...any) { logged++ })
		mw := Authenticate(authFunc(func(ctx context.Context, r *http.Request) (*auth.Identity, error) {
			return nil, errors.New("connection refused")
		}), l)

		resp, body := doGet(t, mw(whoami))

		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		require.JSONEq(t, `{"detail": "Internal server error"}`, body)
		require.Equal(t, 1, logged, "unexpected error has to be logged")
	})
}

func TestRequireUser(t *testing.T) {
	t.Run("anonymous rejected", func(t *testing.T) {
		resp, body := doGet(t, RequireUser(whoami))

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.JSONEq(t, `{"detail": "Authentication credentials were not provided."}`, body)
	})

	t.Run("user passes", func(t *testing.T) {
		mw := Authenticate(authFunc(func(ctx context.Context, r *http.Request) (*auth.Identity, error) {
			return &auth.Identity{User: models.User{Username: "nk"}}, nil
		}), noopErrorLogger)

		resp, body := doGet(t, mw(RequireUser(whoami)))

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "nk", body)
	})
}
