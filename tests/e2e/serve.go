package e2e

import (
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/embla/internal/handlers"
	"github.com/nkiryanov/embla/internal/logger"
	"github.com/nkiryanov/embla/internal/repository/postgres"
	"github.com/nkiryanov/embla/internal/service/auth"
	"github.com/nkiryanov/embla/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/embla/internal/service/csrf"
	"github.com/nkiryanov/embla/internal/service/issuer"
	"github.com/nkiryanov/embla/internal/service/relay"
	"github.com/nkiryanov/embla/internal/service/user"
	"github.com/nkiryanov/embla/internal/testutil"
)

type Services struct {
	UserService  *user.UserService
	TokenManager *tokenmanager.TokenManager
}

// Create db transaction and run server in with that connection (one connection cause one transaction)
// The created transaction passed to inner function: so, you can safely use testutil.WithTx with it
// Server runs in debug mode, so cookies are sent over plain http
func ServeWithTx(dbpool *pgxpool.Pool, t *testing.T, fn func(tx pgx.Tx, srvURL string, services Services)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		// Initialize repositories
		userRepo := &postgres.UserRepo{DB: tx}

		// Initialize services
		tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"})
		require.NoError(t, err, "token manager should be created without errors")

		us, err := user.NewService(auth.BcryptHasher{Cost: bcrypt.MinCost}, userRepo)
		require.NoError(t, err, "user service starting error")

		iss, err := issuer.New(tokenManager, us)
		require.NoError(t, err, "token issuer starting error")

		cr, err := relay.New(iss, relay.Config{Debug: true})
		require.NoError(t, err, "cookie relay starting error")

		authenticator, err := auth.NewAuthenticator(auth.Config{}, tokenManager, us)
		require.NoError(t, err, "authenticator starting error")

		// Complete all together as router
		router := handlers.NewRouter(
			cr,
			csrf.New(csrf.Config{Debug: true}),
			authenticator,
			us,
			dbpool,
			logger.NewNoOpLogger(),
		)

		// Run http server with the router in transaction
		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(tx, srv.URL, Services{
			UserService:  us,
			TokenManager: tokenManager,
		})
	})
}
