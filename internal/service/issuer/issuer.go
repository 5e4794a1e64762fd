// Package issuer implements token pair endpoints: obtain, refresh and verify.
//
// Every operation takes a JSON object payload and answers with a status code
// and a JSON object body, the way a plain token API would respond. Tokens are
// returned in the body; moving them into cookies is up to the caller.
package issuer

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/nkiryanov/embla/internal/apperrors"
	"github.com/nkiryanov/embla/internal/models"
	"github.com/nkiryanov/embla/internal/service/auth/tokenmanager"
)

// Payload keys
const (
	KeyUsername = "username"
	KeyPassword = "password"
	KeyAccess   = "access"
	KeyRefresh  = "refresh"
	KeyToken    = "token"
	KeyDetail   = "detail"
	KeyCode     = "code"
)

const (
	msgFieldRequired      = "This field is required."
	msgFieldBlank         = "This field may not be blank."
	msgFieldNotString     = "Not a valid string."
	msgInvalidCredentials = "No active account found with the given credentials"
	msgTokenNotValid      = "Token is invalid or expired"
	codeTokenNotValid     = "token_not_valid"
)

// Request body decoded as JSON object
type Payload map[string]any

type Response struct {
	Status int
	Data   map[string]any
}

type tokenManager interface {
	GeneratePair(user models.User) (models.TokenPair, error)
	RefreshAccess(refresh string) (models.IssuedToken, error)
	Verify(value string) (*tokenmanager.Claims, error)
}

type credentialChecker interface {
	// Has to return apperrors.ErrInvalidCredentials if user can't log in
	Authenticate(ctx context.Context, username string, password string) (models.User, error)
}

type Issuer struct {
	tokens tokenManager
	users  credentialChecker
}

func New(tokens tokenManager, users credentialChecker) (*Issuer, error) {
	if tokens == nil || users == nil {
		return nil, errors.New("token manager and user service must not be nil")
	}

	return &Issuer{tokens: tokens, users: users}, nil
}

// Exchange username and password for access and refresh tokens
func (i *Issuer) Obtain(ctx context.Context, p Payload) (Response, error) {
	fields, resp, ok := requireStrings(p, KeyUsername, KeyPassword)
	if !ok {
		return resp, nil
	}

	user, err := i.users.Authenticate(ctx, fields[KeyUsername], fields[KeyPassword])
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return detail(http.StatusUnauthorized, msgInvalidCredentials), nil
	default:
		return Response{}, fmt.Errorf("can't authenticate user. Err: %w", err)
	}

	pair, err := i.tokens.GeneratePair(user)
	if err != nil {
		return Response{}, fmt.Errorf("token could not generated, sorry. Err: %w", err)
	}

	return Response{
		Status: http.StatusOK,
		Data: map[string]any{
			KeyAccess:  pair.Access.Value,
			KeyRefresh: pair.Refresh.Value,
		},
	}, nil
}

// Exchange refresh token for new access token
func (i *Issuer) Refresh(ctx context.Context, p Payload) (Response, error) {
	fields, resp, ok := requireStrings(p, KeyRefresh)
	if !ok {
		return resp, nil
	}

	access, err := i.tokens.RefreshAccess(fields[KeyRefresh])
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrInvalidToken):
		return tokenNotValid(), nil
	default:
		return Response{}, fmt.Errorf("can't refresh token. Err: %w", err)
	}

	return Response{
		Status: http.StatusOK,
		Data:   map[string]any{KeyAccess: access.Value},
	}, nil
}

// Check token signature and expiry, either access or refresh
func (i *Issuer) Verify(ctx context.Context, p Payload) (Response, error) {
	fields, resp, ok := requireStrings(p, KeyToken)
	if !ok {
		return resp, nil
	}

	_, err := i.tokens.Verify(fields[KeyToken])
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrInvalidToken):
		return tokenNotValid(), nil
	default:
		return Response{}, fmt.Errorf("can't verify token. Err: %w", err)
	}

	return Response{Status: http.StatusOK, Data: map[string]any{}}, nil
}

// Pick required non blank string fields from payload
// If any is missing return 400 response with per field messages
func requireStrings(p Payload, keys ...string) (map[string]string, Response, bool) {
	values := make(map[string]string, len(keys))
	errs := make(map[string]any)

	for _, key := range keys {
		raw, found := p[key]
		value, isString := raw.(string)

		switch {
		case !found || raw == nil:
			errs[key] = []string{msgFieldRequired}
		case !isString:
			errs[key] = []string{msgFieldNotString}
		case value == "":
			errs[key] = []string{msgFieldBlank}
		default:
			values[key] = value
		}
	}

	if len(errs) > 0 {
		return nil, Response{Status: http.StatusBadRequest, Data: errs}, false
	}

	return values, Response{}, true
}

func detail(status int, message string) Response {
	return Response{
		Status: status,
		Data:   map[string]any{KeyDetail: message},
	}
}

func tokenNotValid() Response {
	resp := detail(http.StatusUnauthorized, msgTokenNotValid)
	resp.Data[KeyCode] = codeTokenNotValid
	return resp
}
