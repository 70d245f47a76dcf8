package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	StoreBackend string `env:"STORE_BACKEND" default:"sqlite"`
	RedisURL     string `env:"REDIS_URL"`
	DatabaseURL  string `env:"DATABASE_URL"`
	SQLitePath   string `env:"SQLITE_PATH" default:"tag1bot.db"`

	SlackAppToken  string `env:"SLACK_APP_TOKEN"`
	SlackBotToken  string `env:"SLACK_BOT_TOKEN"`
	SlackChannelID string `env:"SLACK_CHANNEL_ID"` // comma-separated allow-list, empty means all
	TelegramToken  string `env:"TELEGRAM_TOKEN"`

	KarmaMergeDuplicates bool          `env:"KARMA_MERGE_DUPLICATES" default:"false"`
	MaxInFlight          int64         `env:"MAX_IN_FLIGHT" default:"64"`
	ReconnectDelay       time.Duration `env:"RECONNECT_DELAY" default:"5s"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SlackEnabled reports whether Slack credentials are configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackAppToken != "" || c.SlackBotToken != ""
}

// TelegramEnabled reports whether a Telegram bot token is configured.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

// SlackChannels returns the channel allow-list.
func (c *Config) SlackChannels() []string {
	var out []string
	for _, id := range strings.Split(c.SlackChannelID, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func validate(cfg *Config) error {
	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return errors.New("REDIS_URL is required")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			return errors.New("SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be one of memory, redis, postgres, sqlite, got %q", cfg.StoreBackend)
	}

	if !cfg.SlackEnabled() && !cfg.TelegramEnabled() {
		return errors.New("SLACK_APP_TOKEN and SLACK_BOT_TOKEN or TELEGRAM_TOKEN is required")
	}

	if cfg.SlackEnabled() {
		if cfg.SlackAppToken == "" {
			return errors.New("SLACK_APP_TOKEN is required")
		}
		if cfg.SlackBotToken == "" {
			return errors.New("SLACK_BOT_TOKEN is required")
		}
		if !strings.HasPrefix(cfg.SlackAppToken, "xapp-") {
			return errors.New("SLACK_APP_TOKEN must have the prefix \"xapp-\"")
		}
		if !strings.HasPrefix(cfg.SlackBotToken, "xoxb-") {
			return errors.New("SLACK_BOT_TOKEN must have the prefix \"xoxb-\"")
		}
	}

	if cfg.MaxInFlight < 1 {
		return fmt.Errorf("MAX_IN_FLIGHT must be positive, got %d", cfg.MaxInFlight)
	}
	if cfg.ReconnectDelay <= 0 {
		return fmt.Errorf("RECONNECT_DELAY must be positive, got %s", cfg.ReconnectDelay)
	}

	return nil
}
