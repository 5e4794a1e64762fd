package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/nkiryanov/embla/internal/apperrors"
	"github.com/nkiryanov/embla/internal/config"
	"github.com/nkiryanov/embla/internal/db"
	"github.com/nkiryanov/embla/internal/repository/postgres"
	"github.com/nkiryanov/embla/internal/service/auth"
	"github.com/nkiryanov/embla/internal/service/user"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout, os.Getenv, os.Getwd, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, out io.Writer, getenv func(string) string, getwd func() (string, error), args []string) error {
	var nu user.NewUser

	c, err := config.Load("createuser", getenv, getwd, args, func(fs *pflag.FlagSet) {
		fs.StringVarP(&nu.Username, "username", "u", "", "Username, required")
		fs.StringVarP(&nu.Password, "password", "p", "", "Password, required")
		fs.StringVar(&nu.Email, "email", "", "Email")
		fs.StringVar(&nu.Name, "name", "", "Full name")
	})
	if err != nil {
		return err
	}

	switch {
	case nu.Username == "":
		return errors.New("username is required")
	case nu.Password == "":
		return errors.New("password is required")
	}

	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	defer pool.Close()

	userService, err := user.NewService(auth.DefaultHasher, &postgres.UserRepo{DB: pool})
	if err != nil {
		return err
	}

	u, err := userService.CreateUser(ctx, nu)
	if errors.Is(err, apperrors.ErrUserAlreadyExists) {
		return fmt.Errorf("user %q already exists", nu.Username)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "user %q created, id=%d\n", u.Username, u.ID)
	return err
}
