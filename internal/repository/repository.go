package repository

import (
	"context"

	"github.com/nkiryanov/embla/internal/models"
)

type CreateUserParams struct {
	Username       string
	Email          string
	Name           string
	HashedPassword string
}

// Filter for listing users
// Zero value matches every user
type UserFilter struct {
	ID *int64
}

// User repository interface
type UserRepo interface {
	// Create user
	// If user with username exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, arg CreateUserParams) (models.User, error)

	// Get user by it's id or username
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID int64) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)

	// List users matching the filter, ordered by id
	ListUsers(ctx context.Context, filter UserFilter) ([]models.User, error)

	// Apply not nil fields of update to the user
	// If user not found must return apperrors.ErrUserNotFound
	UpdateUser(ctx context.Context, userID int64, update models.UserUpdate) (models.User, error)

	CountUsers(ctx context.Context) (int64, error)
}
