package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nkiryanov/embla/internal/logger"
)

const (
	DefaultUsersCountSchedule = "@hourly"

	defaultConcurrency = 2
	defaultQueue       = "default"
)

type WorkerConfig struct {
	// Redis connection URI: redis://[:password@]host[:port][/db]
	RedisURL string

	// Cron spec or '@every <duration>' for users count task
	// If not set than default is used
	UsersCountSchedule string

	Concurrency int
}

// Worker runs asynq server and scheduler that enqueues periodic tasks
type Worker struct {
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	logger    logger.Logger
}

func NewWorker(cfg WorkerConfig, users usersCounter, l logger.Logger) (*Worker, error) {
	if cfg.UsersCountSchedule == "" {
		cfg.UsersCountSchedule = DefaultUsersCountSchedule
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = defaultConcurrency
	}

	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	handler, err := NewUsersCountHandler(users, l)
	if err != nil {
		return nil, err
	}

	mux := asynq.NewServeMux()
	mux.Handle(TypeUsersCount, handler)

	al := &asynqLogger{l: l.With("component", "asynq")}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{defaultQueue: 1},
		Logger:      al,
	})

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   al,
	})
	if _, err := scheduler.Register(cfg.UsersCountSchedule, NewUsersCountTask()); err != nil {
		return nil, fmt.Errorf("can't schedule %s task. Err: %w", TypeUsersCount, err)
	}

	return &Worker{
		server:    server,
		scheduler: scheduler,
		mux:       mux,
		logger:    l,
	}, nil
}

// Run starts processing tasks and returns channel closed once worker stopped
// Worker stops when ctx is done
func (w *Worker) Run(ctx context.Context) (<-chan struct{}, error) {
	if err := w.server.Start(w.mux); err != nil {
		return nil, fmt.Errorf("can't start task server. Err: %w", err)
	}

	if err := w.scheduler.Start(); err != nil {
		w.server.Shutdown()
		return nil, fmt.Errorf("can't start scheduler. Err: %w", err)
	}

	idleStopped := make(chan struct{})
	go func() {
		defer close(idleStopped)
		<-ctx.Done()

		w.scheduler.Shutdown()
		w.server.Shutdown()
		w.logger.Debug("Worker stopped")
	}()

	return idleStopped, nil
}

// Enqueue users count task right now
func EnqueueUsersCount(ctx context.Context, redisURL string) (*asynq.TaskInfo, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	defer client.Close() // nolint:errcheck

	info, err := client.EnqueueContext(ctx, NewUsersCountTask())
	if err != nil {
		return nil, fmt.Errorf("can't enqueue %s task. Err: %w", TypeUsersCount, err)
	}
	return info, nil
}
