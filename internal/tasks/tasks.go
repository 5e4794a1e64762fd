package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nkiryanov/embla/internal/logger"
)

const (
	TypeUsersCount = "users:count"

	usersCountTimeout   = time.Minute
	usersCountMaxRetry  = 3
	usersCountRetention = 24 * time.Hour
)

// Stored as task result, readable with asynq inspector while retained
type UsersCountResult struct {
	Count int64 `json:"count"`
}

type usersCounter interface {
	Count(ctx context.Context) (int64, error)
}

func NewUsersCountTask() *asynq.Task {
	return asynq.NewTask(
		TypeUsersCount,
		nil,
		asynq.MaxRetry(usersCountMaxRetry),
		asynq.Timeout(usersCountTimeout),
		asynq.Retention(usersCountRetention),
	)
}

type UsersCountHandler struct {
	users  usersCounter
	logger logger.Logger
}

func NewUsersCountHandler(users usersCounter, l logger.Logger) (*UsersCountHandler, error) {
	if users == nil {
		return nil, errors.New("users counter must not be nil")
	}

	return &UsersCountHandler{users: users, logger: l}, nil
}

// ProcessTask counts users and writes the count as task result
func (h *UsersCountHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	result, err := h.count(ctx)
	if err != nil {
		return err
	}

	// Task built outside of a server has no result writer
	if rw := t.ResultWriter(); rw != nil {
		if _, err := rw.Write(result); err != nil {
			return fmt.Errorf("can't write task result. Err: %w", err)
		}
	}

	return nil
}

func (h *UsersCountHandler) count(ctx context.Context) ([]byte, error) {
	count, err := h.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("can't count users. Err: %w", err)
	}

	h.logger.Info("Users counted", "count", count)

	return json.Marshal(UsersCountResult{Count: count})
}
