package user

import (
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/embla/internal/apperrors"
	"github.com/nkiryanov/embla/internal/models"
	"github.com/nkiryanov/embla/internal/repository/postgres"
	"github.com/nkiryanov/embla/internal/service/auth"
	"github.com/nkiryanov/embla/internal/testutil"
)

func TestUser(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Create UserService within transaction
	withTx := func(t *testing.T, fn func(s *UserService, repo *postgres.UserRepo)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			repo := &postgres.UserRepo{DB: tx}
			s, err := NewService(auth.BcryptHasher{Cost: bcrypt.MinCost}, repo)
			require.NoError(t, err)
			fn(s, repo)
		})
	}

	mustCreate := func(t *testing.T, s *UserService, username string) models.User {
		user, err := s.CreateUser(t.Context(), NewUser{Username: username, Password: "password123", Email: username + "@example.com"})
		require.NoError(t, err)
		return user
	}

	t.Run("new service without repo fail", func(t *testing.T) {
		_, err := NewService(nil, nil)

		require.Error(t, err)
	})

	t.Run("CreateUser", func(t *testing.T) {
		t.Run("create ok", func(t *testing.T) {
			withTx(t, func(s *UserService, _ *postgres.UserRepo) {
				user, err := s.CreateUser(t.Context(), NewUser{Username: "test-user", Password: "password123", Name: "Test"})

				require.NoError(t, err, "creating new user should be ok")
				require.NotZero(t, user.ID, "user ID should not be empty")
				require.Equal(t, "test-user", user.Username, "username should match")
				require.Equal(t, "Test", user.Name)
				require.NotEmpty(t, user.HashedPassword, "password hash should not be empty")
				require.NotEqual(t, "password123", user.HashedPassword, "password should be hashed")
				require.NotZero(t, user.CreatedAt, "created at should be set")
			})
		})

		t.Run("empty password fail", func(t *testing.T) {
			withTx(t, func(s *UserService, _ *postgres.UserRepo) {
				_, err := s.CreateUser(t.Context(), NewUser{Username: "test-user"})

				require.Error(t, err, "creating user with empty password should fail")
			})
		})

		t.Run("duplicate fail", func(t *testing.T) {
			withTx(t, func(s *UserService, _ *postgres.UserRepo) {
				mustCreate(t, s, "test-user")

				_, err := s.CreateUser(t.Context(), NewUser{Username: "test-user", Password: "other"})

				require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
			})
		})
	})

	t.Run("Authenticate", func(t *testing.T) {
		t.Run("ok", func(t *testing.T) {
			withTx(t, func(s *UserService, _ *postgres.UserRepo) {
				created := mustCreate(t, s, "nk")

				user, err := s.Authenticate(t.Context(), "nk", "password123")

				require.NoError(t, err)
				require.Equal(t, created.ID, user.ID)
			})
		})

		tests := []struct {
			name     string
			username string
			password string
		}{
			{"wrong password", "nk", "wrong"},
			{"unknown user", "not-existed-user", "password123"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				withTx(t, func(s *UserService, _ *postgres.UserRepo) {
					mustCreate(t, s, "nk")

					_, err := s.Authenticate(t.Context(), tt.username, tt.password)

					require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
				})
			})
		}
	})

	t.Run("own records only", func(t *testing.T) {
		withTx(t, func(s *UserService, _ *postgres.UserRepo) {
			me := mustCreate(t, s, "me")
			other := mustCreate(t, s, "other")

			t.Run("list", func(t *testing.T) {
				users, err := s.ListOwn(t.Context(), me)

				require.NoError(t, err)
				require.Len(t, users, 1)
				require.Equal(t, me.ID, users[0].ID)
			})

			t.Run("get own", func(t *testing.T) {
				got, err := s.GetOwn(t.Context(), me, me.ID)

				require.NoError(t, err)
				require.Equal(t, me.Username, got.Username)
			})

			t.Run("get other", func(t *testing.T) {
				_, err := s.GetOwn(t.Context(), me, other.ID)

				require.ErrorIs(t, err, apperrors.ErrUserNotFound)
			})

			t.Run("update own", func(t *testing.T) {
				name := "Me Myself"
				got, err := s.UpdateOwn(t.Context(), me, me.ID, models.UserUpdate{Name: &name})

				require.NoError(t, err)
				require.Equal(t, "Me Myself", got.Name)
			})

			t.Run("update other", func(t *testing.T) {
				name := "Hacked"
				_, err := s.UpdateOwn(t.Context(), me, other.ID, models.UserUpdate{Name: &name})
				require.ErrorIs(t, err, apperrors.ErrUserNotFound)

				got, err := s.GetUser(t.Context(), other.ID)
				require.NoError(t, err)
				require.NotEqual(t, "Hacked", got.Name, "other user must stay untouched")
			})

			t.Run("count", func(t *testing.T) {
				count, err := s.Count(t.Context())

				require.NoError(t, err)
				require.Equal(t, int64(2), count)
			})
		})
	})
}
