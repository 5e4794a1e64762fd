package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/nkiryanov/embla/internal/apperrors"
	"github.com/nkiryanov/embla/internal/models"
	"github.com/nkiryanov/embla/internal/repository"
	"github.com/nkiryanov/embla/internal/service/auth"
)

type NewUser struct {
	Username string
	Password string
	Email    string
	Name     string
}

type UserService struct {
	hasher   auth.PasswordHasher
	userRepo repository.UserRepo

	// Compared against when user is not found, so missing and existing usernames take the same time
	dummyHash string
}

func NewService(hasher auth.PasswordHasher, userRepo repository.UserRepo) (*UserService, error) {
	if hasher == nil {
		hasher = auth.DefaultHasher
	}

	if userRepo == nil {
		return nil, errors.New("user repo must not be nil")
	}

	dummyHash, err := hasher.Hash("dummy-password")
	if err != nil {
		return nil, fmt.Errorf("hasher is not usable. Err: %w", err)
	}

	return &UserService{
		hasher:    hasher,
		userRepo:  userRepo,
		dummyHash: dummyHash,
	}, nil
}

func (s *UserService) CreateUser(ctx context.Context, u NewUser) (models.User, error) {
	var user models.User
	hash, err := s.hasher.Hash(u.Password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err = s.userRepo.CreateUser(ctx, repository.CreateUserParams{
		Username:       u.Username,
		Email:          u.Email,
		Name:           u.Name,
		HashedPassword: hash,
	})
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}

// Check user credentials
// Unknown user, wrong password and inactive user all return apperrors.ErrInvalidCredentials
func (s *UserService) Authenticate(ctx context.Context, username string, password string) (models.User, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrUserNotFound):
		_ = s.hasher.Compare(s.dummyHash, password)
		return models.User{}, apperrors.ErrInvalidCredentials
	default:
		return models.User{}, fmt.Errorf("can't get user. Err: %w", err)
	}

	if err := s.hasher.Compare(user.HashedPassword, password); err != nil {
		return models.User{}, apperrors.ErrInvalidCredentials
	}

	if !user.IsActive {
		return models.User{}, apperrors.ErrInvalidCredentials
	}

	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, userID int64) (models.User, error) {
	return s.userRepo.GetUserByID(ctx, userID)
}

// List users visible to the caller: the caller only
func (s *UserService) ListOwn(ctx context.Context, caller models.User) ([]models.User, error) {
	return s.userRepo.ListUsers(ctx, repository.UserFilter{ID: &caller.ID})
}

// Get user by id if it is the caller
// Other users are reported as not found
func (s *UserService) GetOwn(ctx context.Context, caller models.User, userID int64) (models.User, error) {
	if userID != caller.ID {
		return models.User{}, apperrors.ErrUserNotFound
	}

	return s.userRepo.GetUserByID(ctx, caller.ID)
}

// Update user by id if it is the caller
// Other users are reported as not found
func (s *UserService) UpdateOwn(ctx context.Context, caller models.User, userID int64, update models.UserUpdate) (models.User, error) {
	if userID != caller.ID {
		return models.User{}, apperrors.ErrUserNotFound
	}

	return s.userRepo.UpdateUser(ctx, caller.ID, update)
}

func (s *UserService) Count(ctx context.Context) (int64, error) {
	return s.userRepo.CountUsers(ctx)
}
