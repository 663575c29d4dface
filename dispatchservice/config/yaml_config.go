package config

import (
	"log/slog"
	"time"
)

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

type YamlSMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	From     string `yaml:"from"`
	Username string `yaml:"username"`
}

type YamlTelegramConfig struct {
	BaseURL string `yaml:"base_url"`
}

type YamlSlackConfig struct {
	APIURL string `yaml:"api_url"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID           string             `yaml:"project_id"`
	ListenAddr          string             `yaml:"listen_addr"`
	NumDispatchWorkers  int                `yaml:"num_dispatch_workers"`
	RetryMax            int                `yaml:"retry_max"`
	RetryBackoffSeconds int                `yaml:"retry_backoff_seconds"`
	SendTimeoutSeconds  int                `yaml:"send_timeout_seconds"`
	RedisConfig         YamlRedisConfig    `yaml:"redis"`
	SMTPConfig          YamlSMTPConfig     `yaml:"smtp"`
	TelegramConfig      YamlTelegramConfig `yaml:"telegram"`
	SlackConfig         YamlSlackConfig    `yaml:"slack"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:          baseCfg.ProjectID,
		ListenAddr:         baseCfg.ListenAddr,
		NumDispatchWorkers: baseCfg.NumDispatchWorkers,
		RetryMax:           baseCfg.RetryMax,
		RetryBackoff:       time.Duration(baseCfg.RetryBackoffSeconds) * time.Second,
		SendTimeout:        time.Duration(baseCfg.SendTimeoutSeconds) * time.Second,
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
		},
		SMTP: SMTPConfig{
			Host:     baseCfg.SMTPConfig.Host,
			Port:     baseCfg.SMTPConfig.Port,
			From:     baseCfg.SMTPConfig.From,
			Username: baseCfg.SMTPConfig.Username,
		},
		Telegram: TelegramConfig{
			BaseURL: baseCfg.TelegramConfig.BaseURL,
		},
		Slack: SlackConfig{
			APIURL: baseCfg.SlackConfig.APIURL,
		},
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"num_dispatch_workers", cfg.NumDispatchWorkers,
	)

	return cfg, nil
}
