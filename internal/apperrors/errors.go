package apperrors

import (
	"errors"
)

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserInactive      = errors.New("user is inactive")

	// Wrong username or password, or the account is disabled
	ErrInvalidCredentials = errors.New("no active account found with the given credentials")

	// Token signature, expiry, algorithm or type check failed
	ErrInvalidToken = errors.New("token is invalid or expired")

	// Authorization header has the expected scheme but not exactly one token after it
	ErrMalformedAuthHeader = errors.New("authorization header must contain two space-delimited values")
)
