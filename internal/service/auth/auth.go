package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nkiryanov/embla/internal/apperrors"
	"github.com/nkiryanov/embla/internal/models"
	"github.com/nkiryanov/embla/internal/service/auth/tokenmanager"
)

const (
	defaultAccessCookieName = "access_token"
	defaultAccessHeaderName = "Authorization"
	defaultAccessAuthScheme = "Bearer"
)

type Config struct {
	// Cookie to read access token from
	AccessCookieName string

	// Header and scheme used when there is no access cookie: 'Authorization: Bearer <token>'
	AccessHeaderName string
	AccessAuthScheme string
}

// Authenticated user and the access token claims it was resolved from
type Identity struct {
	User   models.User
	Claims *tokenmanager.Claims
}

type accessParser interface {
	// Has to return apperrors.ErrInvalidToken if token can't be trusted
	ParseAccess(access string) (*tokenmanager.Claims, error)
}

type userGetter interface {
	// Has to return apperrors.ErrUserNotFound if user not found
	GetUser(ctx context.Context, userID int64) (models.User, error)
}

// Resolve requests to users by access token from cookie or header
type Authenticator struct {
	tokens accessParser
	users  userGetter

	accessCookieName string
	accessHeaderName string
	accessAuthScheme string
}

func NewAuthenticator(cfg Config, tokens accessParser, users userGetter) (*Authenticator, error) {
	if tokens == nil || users == nil {
		return nil, errors.New("token parser and user getter must not be nil")
	}

	setDefault := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefault(&cfg.AccessCookieName, defaultAccessCookieName)
	setDefault(&cfg.AccessHeaderName, defaultAccessHeaderName)
	setDefault(&cfg.AccessAuthScheme, defaultAccessAuthScheme)

	return &Authenticator{
		tokens:           tokens,
		users:            users,
		accessCookieName: cfg.AccessCookieName,
		accessHeaderName: cfg.AccessHeaderName,
		accessAuthScheme: cfg.AccessAuthScheme,
	}, nil
}

// Authenticate request
// Returns nil identity and nil error for anonymous requests.
//
// Access cookie wins over header. Invalid or expired cookie token makes the
// request anonymous instead of failing it. Without cookie the header result is
// returned as is, including apperrors.ErrInvalidToken for a bad header token.
// Unknown or inactive user is always an error.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*Identity, error) {
	cookie, err := r.Cookie(a.accessCookieName)
	if err != nil || cookie.Value == "" {
		return a.authenticateHeader(ctx, r)
	}

	claims, err := a.tokens.ParseAccess(cookie.Value)
	switch {
	case err == nil:
		return a.identity(ctx, claims)
	case errors.Is(err, apperrors.ErrInvalidToken):
		return nil, nil
	default:
		return nil, err
	}
}

func (a *Authenticator) authenticateHeader(ctx context.Context, r *http.Request) (*Identity, error) {
	parts := strings.Fields(r.Header.Get(a.accessHeaderName))

	// No header or some other auth scheme: not ours to judge
	if len(parts) == 0 || parts[0] != a.accessAuthScheme {
		return nil, nil
	}

	if len(parts) != 2 {
		return nil, apperrors.ErrMalformedAuthHeader
	}

	claims, err := a.tokens.ParseAccess(parts[1])
	if err != nil {
		return nil, err
	}

	return a.identity(ctx, claims)
}

func (a *Authenticator) identity(ctx context.Context, claims *tokenmanager.Claims) (*Identity, error) {
	user, err := a.users.GetUser(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("can't get token user. Err: %w", err)
	}

	if !user.IsActive {
		return nil, apperrors.ErrUserInactive
	}

	return &Identity{User: user, Claims: claims}, nil
}
