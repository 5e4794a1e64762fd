package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/embla/internal/logger"
	"github.com/nkiryanov/embla/internal/testutil"
)

// Allow to use a function as users counter
type countFunc func(ctx context.Context) (int64, error)

func (f countFunc) Count(ctx context.Context) (int64, error) { return f(ctx) }

func TestNewUsersCountTask(t *testing.T) {
	task := NewUsersCountTask()

	require.Equal(t, TypeUsersCount, task.Type())
	require.Empty(t, task.Payload())
}

func TestUsersCountHandler(t *testing.T) {
	t.Run("count encoded", func(t *testing.T) {
		h, err := NewUsersCountHandler(countFunc(func(context.Context) (int64, error) {
			return 42, nil
		}), logger.NewNoOpLogger())
		require.NoError(t, err)

		result, err := h.count(context.Background())

		require.NoError(t, err)
		require.JSONEq(t, `{"count": 42}`, string(result))
	})

	t.Run("process task without result writer", func(t *testing.T) {
		called := 0
		h, err := NewUsersCountHandler(countFunc(func(context.Context) (int64, error) {
			called++
			return 0, nil
		}), logger.NewNoOpLogger())
		require.NoError(t, err)

		err = h.ProcessTask(context.Background(), NewUsersCountTask())

		require.NoError(t, err)
		require.Equal(t, 1, called)
	})

	t.Run("count error returned for retry", func(t *testing.T) {
		dbErr := errors.New("connection refused")
		h, err := NewUsersCountHandler(countFunc(func(context.Context) (int64, error) {
			return 0, dbErr
		}), logger.NewNoOpLogger())
		require.NoError(t, err)

		err = h.ProcessTask(context.Background(), NewUsersCountTask())

		require.ErrorIs(t, err, dbErr)
	})

	t.Run("nil counter", func(t *testing.T) {
		_, err := NewUsersCountHandler(nil, logger.NewNoOpLogger())

		require.Error(t, err)
	})
}

func TestNewWorker(t *testing.T) {
	counter := countFunc(func(context.Context) (int64, error) { return 0, nil })

	t.Run("ok", func(t *testing.T) {
		w, err := NewWorker(WorkerConfig{RedisURL: "redis://localhost:6379/0"}, counter, logger.NewNoOpLogger())

		require.NoError(t, err)
		require.NotNil(t, w)
	})

	t.Run("bad redis url", func(t *testing.T) {
		_, err := NewWorker(WorkerConfig{RedisURL: "http://localhost"}, counter, logger.NewNoOpLogger())

		require.Error(t, err)
	})

	t.Run("bad schedule", func(t *testing.T) {
		_, err := NewWorker(WorkerConfig{
			RedisURL:           "redis://localhost:6379/0",
			UsersCountSchedule: "every now and then",
		}, counter, logger.NewNoOpLogger())

		require.Error(t, err)
	})
}

func TestWorker_Run(t *testing.T) {
	if testing.Short() {
		t.Skip("needs redis container")
	}

	redisURL := testutil.StartRedisContainer(t)

	counted := make(chan int64, 1)
	counter := countFunc(func(context.Context) (int64, error) {
		select {
		case counted <- 7:
		default:
		}
		return 7, nil
	})

	w, err := NewWorker(WorkerConfig{RedisURL: redisURL}, counter, logger.NewNoOpLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	stopped, err := w.Run(ctx)
	require.NoError(t, err)

	info, err := EnqueueUsersCount(context.Background(), redisURL)
	require.NoError(t, err)
	require.Equal(t, TypeUsersCount, info.Type)

	select {
	case n := <-counted:
		require.Equal(t, int64(7), n)
	case <-time.After(30 * time.Second):
		t.Fatal("task was not processed")
	}

	opt, err := asynq.ParseRedisURI(redisURL)
	require.NoError(t, err)
	inspector := asynq.NewInspector(opt)
	defer inspector.Close() // nolint:errcheck

	require.Eventually(t, func() bool {
		ti, err := inspector.GetTaskInfo(info.Queue, info.ID)
		return err == nil && ti.State == asynq.TaskStateCompleted && string(ti.Result) == `{"count":7}`
	}, 10*time.Second, 100*time.Millisecond, "task result has to be retained")

	cancel()
	<-stopped
}
