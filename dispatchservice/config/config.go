package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// SMTPConfig carries the mail submission settings for the Email transport.
// Credentials are NOT here: the optional EMAIL_HOST_PASSWORD secret is read
// at transport connect time.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
}

// TelegramConfig carries transport settings for the Telegram channel.
// BaseURL is overridable so tests can point the transport at a fake Bot API.
type TelegramConfig struct {
	BaseURL string
}

// SlackConfig carries transport settings for the Slack channel. APIURL is
// empty in production (library default) and overridden in tests.
type SlackConfig struct {
	APIURL string
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID  string
	ListenAddr string

	NumDispatchWorkers int
	RetryMax           int
	RetryBackoff       time.Duration
	SendTimeout        time.Duration

	Redis    RedisConfig
	SMTP     SMTPConfig
	Telegram TelegramConfig
	Slack    SlackConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("NUM_DISPATCH_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_DISPATCH_WORKERS", "source", "env")
			cfg.NumDispatchWorkers = workers
		}
	}
	if val := os.Getenv("RETRY_MAX"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			cfg.RetryMax = n
		}
	}
	if val := os.Getenv("RETRY_BACKOFF_SECONDS"); val != "" {
		if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
			cfg.RetryBackoff = time.Duration(secs) * time.Second
		}
	}
	if val := os.Getenv("SEND_TIMEOUT_SECONDS"); val != "" {
		if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
			cfg.SendTimeout = time.Duration(secs) * time.Second
		}
	}

	// Redis overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	if val := os.Getenv("EMAIL_HOST"); val != "" {
		logger.Debug("Overriding config value", "key", "EMAIL_HOST", "source", "env")
		cfg.SMTP.Host = val
	}
	if val := os.Getenv("EMAIL_PORT"); val != "" {
		if port, err := strconv.Atoi(val); err == nil && port > 0 {
			cfg.SMTP.Port = port
		}
	}
	if val := os.Getenv("EMAIL_FROM"); val != "" {
		cfg.SMTP.From = val
	}
	if val := os.Getenv("EMAIL_HOST_USER"); val != "" {
		cfg.SMTP.Username = val
	}

	if val := os.Getenv("TELEGRAM_API_BASE_URL"); val != "" {
		logger.Debug("Overriding config value", "key", "TELEGRAM_API_BASE_URL", "source", "env")
		cfg.Telegram.BaseURL = val
	}
	if val := os.Getenv("SLACK_API_URL"); val != "" {
		logger.Debug("Overriding config value", "key", "SLACK_API_URL", "source", "env")
		cfg.Slack.APIURL = val
	}

	// Final validation and defaults
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.NumDispatchWorkers <= 0 {
		cfg.NumDispatchWorkers = 1
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 60 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.SMTP.Port <= 0 {
		cfg.SMTP.Port = 587
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = "webmaster@localhost"
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
