package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkiryanov/embla/internal/config"
	"github.com/nkiryanov/embla/internal/db"
	"github.com/nkiryanov/embla/internal/handlers"
	"github.com/nkiryanov/embla/internal/logger"
	"github.com/nkiryanov/embla/internal/repository/postgres"
	"github.com/nkiryanov/embla/internal/service/auth"
	"github.com/nkiryanov/embla/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/embla/internal/service/csrf"
	"github.com/nkiryanov/embla/internal/service/issuer"
	"github.com/nkiryanov/embla/internal/service/relay"
	"github.com/nkiryanov/embla/internal/service/user"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	pool   *pgxpool.Pool
	logger logger.Logger
}

func NewServerApp(ctx context.Context, c *config.Config, l logger.Logger) (*ServerApp, error) {
	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}

	handler, err := newHandler(c, pool, l)
	if err != nil {
		pool.Close()
		return nil, err
	}

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    handler,
		pool:       pool,
		logger:     l,
	}, nil
}

func newHandler(c *config.Config, pool *pgxpool.Pool, l logger.Logger) (http.Handler, error) {
	// Initialize services
	tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: c.SecretKey})
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	userService, err := user.NewService(auth.DefaultHasher, &postgres.UserRepo{DB: pool})
	if err != nil {
		return nil, fmt.Errorf("error while creating user service. Err: %w", err)
	}
	tokenIssuer, err := issuer.New(tokenManager, userService)
	if err != nil {
		return nil, fmt.Errorf("error while creating token issuer. Err: %w", err)
	}
	cookieRelay, err := relay.New(tokenIssuer, relay.Config{Debug: c.Debug})
	if err != nil {
		return nil, fmt.Errorf("error while creating cookie relay. Err: %w", err)
	}
	authenticator, err := auth.NewAuthenticator(auth.Config{}, tokenManager, userService)
	if err != nil {
		return nil, fmt.Errorf("error while creating authenticator. Err: %w", err)
	}

	return handlers.NewRouter(
		cookieRelay,
		csrf.New(csrf.Config{Debug: c.Debug}),
		authenticator,
		userService,
		pool,
		l,
	), nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.pool.Close()

	httpServer := &http.Server{
		Addr:    s.ListenAddr,
		Handler: s.Handler,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
