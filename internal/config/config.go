package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/embla/internal/logger"
	"github.com/nkiryanov/embla/internal/tasks"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
	defaultRedisURL     = "redis://localhost:6379/0"
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the http server will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Some internal parts (like signing JWT tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Environment
	Environment string

	// Debug mode: cookies are sent without Secure flag, so plain http works
	Debug bool

	// Redis for background tasks
	RedisURL string

	// Cron spec for users count task
	UsersCountSchedule string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:           defaultLoggingLevel,
		ListenAddr:         defaultListenAddr,
		Environment:        defaultEnvironment,
		RedisURL:           defaultRedisURL,
		UsersCountSchedule: tasks.DefaultUsersCountSchedule,
	}
}

// Load config: defaults, '.env' file, environment and then command line flags
// Each next source overrides the previous one
// Commands may register own flags with extra
func Load(name string, getenv func(string) string, getwd func() (string, error), args []string, extra ...func(*pflag.FlagSet)) (*Config, error) {
	c := NewConfig()

	if err := c.LoadDotEnv(getwd); err != nil {
		return nil, fmt.Errorf("can't load .env file. Err: %w", err)
	}
	if err := c.LoadEnv(getenv); err != nil {
		return nil, fmt.Errorf("can't load environment. Err: %w", err)
	}
	if err := c.ParseFlags(name, args, extra...); err != nil {
		return nil, fmt.Errorf("can't parse flags. Err: %w", err)
	}

	return c, nil
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}

	setBool := func(o *bool) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			b, err := strconv.ParseBool(value)
			if err != nil {
				return err
			}
			*o = b
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":          setString(&c.ListenAddr),
		"DATABASE_URI":         setString(&c.DatabaseDSN),
		"SECRET_KEY":           setString(&c.SecretKey),
		"LOG_LEVEL":            setString(&c.LogLevel),
		"ENVIRONMENT":          setString(&c.Environment),
		"DEBUG":                setBool(&c.Debug),
		"REDIS_URL":            setString(&c.RedisURL),
		"USERS_COUNT_SCHEDULE": setString(&c.UsersCountSchedule),
	}

	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			return fmt.Errorf("invalid %s value: %w", key, err)
		}
	}

	return nil
}

func (c *Config) ParseFlags(name string, args []string, extra ...func(*pflag.FlagSet)) error {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "Debug mode, cookies without Secure flag")
	fs.StringVarP(&c.RedisURL, "redis", "r", c.RedisURL, "Redis URL for background tasks")
	fs.StringVar(&c.UsersCountSchedule, "users-count-schedule", c.UsersCountSchedule, "Cron spec of users count task")

	for _, register := range extra {
		register(fs)
	}

	return fs.Parse(args)
}
