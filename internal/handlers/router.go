package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nkiryanov/embla/internal/handlers/middleware"
	"github.com/nkiryanov/embla/internal/logger"
	"github.com/nkiryanov/embla/internal/models"
	"github.com/nkiryanov/embla/internal/service/auth"
	"github.com/nkiryanov/embla/internal/service/issuer"
	"github.com/nkiryanov/embla/internal/service/relay"
)

func NewRouter(
	cookieRelay cookieRelay,
	csrfIssuer csrfIssuer,
	authenticator authenticator,
	userService userService,
	db pinger,
	logger logger.Logger,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		middleware.LoggerMiddleware(logger),
		chimw.Recoverer,
	)

	r.Method(http.MethodGet, "/healthz", handleHealth(db, logger))

	r.Route("/api", func(r chi.Router) {
		// Token endpoints are anonymous: a stale Authorization header must not break login
		r.Route("/auth", func(r chi.Router) {
			r.Method(http.MethodPost, "/token/", handleTokenObtain(cookieRelay, logger))
			r.Method(http.MethodPost, "/token/refresh/", handleTokenRefresh(cookieRelay, logger))
			r.Method(http.MethodPost, "/token/verify/", handleTokenVerify(cookieRelay, logger))
			r.Method(http.MethodGet, "/csrf/", handleCSRF(csrfIssuer, logger))
			r.Method(http.MethodPost, "/logout/", handleLogout(cookieRelay))
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(
				middleware.Authenticate(authenticator, logger),
				middleware.RequireUser,
			)

			r.Method(http.MethodGet, "/", handleListUsers(userService, logger))
			r.Method(http.MethodGet, "/me/", handleUserMe())
			r.Method(http.MethodGet, "/{id}/", handleRetrieveUser(userService, logger))
			r.Method(http.MethodPut, "/{id}/", handleUpdateUser(userService, logger, false))
			r.Method(http.MethodPatch, "/{id}/", handleUpdateUser(userService, logger, true))
		})
	})

	return r
}

type cookieRelay interface {
	Obtain(ctx context.Context, p issuer.Payload) (relay.Result, error)
	Refresh(ctx context.Context, r *http.Request, p issuer.Payload) (relay.Result, error)
	Verify(ctx context.Context, r *http.Request, p issuer.Payload) (relay.Result, error)
	Logout() relay.Result
}

type csrfIssuer interface {
	Ensure(w http.ResponseWriter, r *http.Request) (string, error)
}

type authenticator interface {
	// Has to return nil identity and nil error for anonymous requests
	Authenticate(ctx context.Context, r *http.Request) (*auth.Identity, error)
}

type userService interface {
	ListOwn(ctx context.Context, caller models.User) ([]models.User, error)

	// Has to return apperrors.ErrUserNotFound unless userID is the caller's one
	GetOwn(ctx context.Context, caller models.User, userID int64) (models.User, error)
	UpdateOwn(ctx context.Context, caller models.User, userID int64, update models.UserUpdate) (models.User, error)
}
