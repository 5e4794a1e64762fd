package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nkiryanov/embla/internal/apperrors"
	"github.com/nkiryanov/embla/internal/handlers/render"
	"github.com/nkiryanov/embla/internal/handlers/userctx"
	"github.com/nkiryanov/embla/internal/logger"
	"github.com/nkiryanov/embla/internal/models"
)

type userResponse struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	DateJoined time.Time `json:"date_joined"`
}

func newUserResponse(u models.User) userResponse {
	return userResponse{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Name:       u.Name,
		DateJoined: u.CreatedAt,
	}
}

func handleUserMe() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := userctx.FromContext(r.Context())
		render.JSON(w, newUserResponse(id.User))
	})
}

func handleListUsers(us userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := userctx.FromContext(r.Context())

		users, err := us.ListOwn(r.Context(), id.User)
		if err != nil {
			l.Error("can't list users", "user_id", id.User.ID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		response := make([]userResponse, 0, len(users))
		for _, u := range users {
			response = append(response, newUserResponse(u))
		}
		render.JSON(w, response)
	})
}

func handleRetrieveUser(us userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := userctx.FromContext(r.Context())

		userID, ok := userIDParam(w, r)
		if !ok {
			return
		}

		user, err := us.GetOwn(r.Context(), id.User, userID)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "Not found.", http.StatusNotFound)
		case err != nil:
			l.Error("can't get user", "user_id", userID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		default:
			render.JSON(w, newUserResponse(user))
		}
	})
}

// Full update: every writable field required
type userPutRequest struct {
	Name  *string `json:"name" validate:"required,max=255"`
	Email *string `json:"email" validate:"required,email,max=254"`
}

// Partial update: only sent fields change
type userPatchRequest struct {
	Name  *string `json:"name" validate:"omitempty,max=255"`
	Email *string `json:"email" validate:"omitempty,email,max=254"`
}

func handleUpdateUser(us userService, l logger.Logger, partial bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := userctx.FromContext(r.Context())

		userID, ok := userIDParam(w, r)
		if !ok {
			return
		}

		var update models.UserUpdate
		if partial {
			req, err := render.BindAndValidate[userPatchRequest](w, r)
			if err != nil {
				return
			}
			update = models.UserUpdate{Name: req.Name, Email: req.Email}
		} else {
			req, err := render.BindAndValidate[userPutRequest](w, r)
			if err != nil {
				return
			}
			update = models.UserUpdate{Name: req.Name, Email: req.Email}
		}

		user, err := us.UpdateOwn(r.Context(), id.User, userID, update)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "Not found.", http.StatusNotFound)
		case err != nil:
			l.Error("can't update user", "user_id", userID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		default:
			render.JSON(w, newUserResponse(user))
		}
	})
}

// Ids that are not integers can't belong to anybody
func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		render.ServiceError(w, "Not found.", http.StatusNotFound)
		return 0, false
	}
	return userID, true
}
