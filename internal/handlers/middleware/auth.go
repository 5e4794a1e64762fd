package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/nkiryanov/embla/internal/apperrors"
	"github.com/nkiryanov/embla/internal/handlers/render"
	"github.com/nkiryanov/embla/internal/handlers/userctx"
	"github.com/nkiryanov/embla/internal/service/auth"
)

const wwwAuthenticate = `Bearer realm="api"`

type authenticator interface {
	// Has to return nil identity and nil error for anonymous requests
	Authenticate(ctx context.Context, r *http.Request) (*auth.Identity, error)
}

type errorLogger interface {
	Error(msg string, args ...any)
}

// Authenticate resolves request identity and stores it in request context.
// Anonymous requests pass through, use RequireUser to reject them.
func Authenticate(a authenticator, l errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := a.Authenticate(r.Context(), r)
			if err != nil {
				renderAuthError(w, r, err, l)
				return
			}

			ctx := userctx.New(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects requests without authenticated identity
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userctx.FromContext(r.Context()); !ok {
			w.Header().Set("WWW-Authenticate", wwwAuthenticate)
			render.ServiceError(w, "Authentication credentials were not provided.", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func renderAuthError(w http.ResponseWriter, r *http.Request, err error, l errorLogger) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidToken):
		w.Header().Set("WWW-Authenticate", wwwAuthenticate)
		render.CodedError(w, "Given token not valid for any token type", "token_not_valid", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrMalformedAuthHeader):
		w.Header().Set("WWW-Authenticate", wwwAuthenticate)
		render.CodedError(w, "Authorization header must contain two space-delimited values", "bad_authorization_header", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrUserNotFound):
		w.Header().Set("WWW-Authenticate", wwwAuthenticate)
		render.CodedError(w, "User not found", "user_not_found", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrUserInactive):
		w.Header().Set("WWW-Authenticate", wwwAuthenticate)
		render.CodedError(w, "User is inactive", "user_inactive", http.StatusUnauthorized)
	default:
		l.Error("can't authenticate request", "uri", r.RequestURI, "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}
