package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nkiryanov/embla/internal/config"
	"github.com/nkiryanov/embla/internal/db"
	"github.com/nkiryanov/embla/internal/logger"
	"github.com/nkiryanov/embla/internal/repository/postgres"
	"github.com/nkiryanov/embla/internal/service/auth"
	"github.com/nkiryanov/embla/internal/service/user"
	"github.com/nkiryanov/embla/internal/tasks"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Getenv, os.Getwd, os.Args[1:]); err != nil {
		slog.Error("worker failed", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, getenv func(string) string, getwd func() (string, error), args []string) error {
	var enqueue bool

	c, err := config.Load("worker", getenv, getwd, args, func(fs *pflag.FlagSet) {
		fs.BoolVar(&enqueue, "enqueue", false, "Enqueue users count task once and exit")
	})
	if err != nil {
		return err
	}

	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return fmt.Errorf("error while initializing logger: %w", err)
	}

	if enqueue {
		info, err := tasks.EnqueueUsersCount(ctx, c.RedisURL)
		if err != nil {
			return err
		}
		l.Info("Task enqueued", "id", info.ID, "type", info.Type, "queue", info.Queue)
		return nil
	}

	pool, err := db.Connect(ctx, c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	defer pool.Close()

	userService, err := user.NewService(auth.DefaultHasher, &postgres.UserRepo{DB: pool})
	if err != nil {
		return err
	}

	worker, err := tasks.NewWorker(tasks.WorkerConfig{
		RedisURL:           c.RedisURL,
		UsersCountSchedule: c.UsersCountSchedule,
	}, userService, l)
	if err != nil {
		return err
	}

	stopped, err := worker.Run(ctx)
	if err != nil {
		return err
	}
	l.Info("Worker started", "schedule", c.UsersCountSchedule)

	<-stopped
	return nil
}
