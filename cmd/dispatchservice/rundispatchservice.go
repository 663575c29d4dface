package main

import (
	"context"
	_ "embed"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-dispatch-service/dispatchservice"
	"github.com/tinywideclouds/go-dispatch-service/dispatchservice/config"
	"github.com/tinywideclouds/go-dispatch-service/internal/platform/email"
	"github.com/tinywideclouds/go-dispatch-service/internal/platform/slack"
	"github.com/tinywideclouds/go-dispatch-service/internal/platform/telegram"
	"github.com/tinywideclouds/go-dispatch-service/internal/queue"
	"github.com/tinywideclouds/go-dispatch-service/internal/secrets"
	"github.com/tinywideclouds/go-dispatch-service/internal/storage/cache"
	fsStore "github.com/tinywideclouds/go-dispatch-service/internal/storage/firestore"
	"github.com/tinywideclouds/go-dispatch-service/pkg/dispatch"
	"github.com/tinywideclouds/go-dispatch-service/pkg/notify"
)

//go:embed local.yaml
var configFile []byte

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "go-dispatch-service")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()

	// --- Infrastructure Clients ---
	fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		logger.Error("Firestore client failed", "err", err)
		os.Exit(1)
	}
	defer fsClient.Close()

	// --- Topic Store (Decorated) ---
	var store dispatch.TopicStore = fsStore.NewTopicStore(fsClient)
	logger.Info("TopicStore initialized", "type", "firestore")

	var backend queue.Backend

	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis layer...", "addr", cfg.Redis.Addr)
		redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Error("Failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		store = cache.NewCachedTopicStore(store, redisClient, 1*time.Hour)
		logger.Info("TopicStore upgraded", "type", "redis_cached_firestore")

		backend, err = queue.NewRedisBackend(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, "dispatch:jobs", clock)
		if err != nil {
			logger.Error("Failed to create redis queue backend", "err", err)
			os.Exit(1)
		}
		logger.Info("Queue backend initialized", "type", "redis")
	} else {
		backend = queue.NewMemoryBackend(clock)
		logger.Info("Queue backend initialized", "type", "memory")
	}
	defer backend.Close()

	// --- Transports ---
	provider := secrets.NewEnv()
	transports := map[notify.Method]dispatch.TransportFactory{
		notify.MethodEmail: func() dispatch.Transport {
			return email.NewDispatcher(cfg.SMTP, provider, cfg.SendTimeout, logger)
		},
		notify.MethodSlack: func() dispatch.Transport {
			return slack.NewDispatcher(cfg.Slack, provider, cfg.SendTimeout, logger)
		},
		notify.MethodTelegram: func() dispatch.Transport {
			return telegram.NewDispatcher(cfg.Telegram, provider, cfg.SendTimeout, logger)
		},
	}

	// --- Service ---
	service, err := dispatchservice.New(cfg, store, transports, backend, clock, logger)
	if err != nil {
		logger.Error("Service creation failed", "err", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting service...")
		errCh <- service.Start(ctx)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err = <-errCh:
		if err != nil {
			logger.Error("Service stopped with error", "err", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err = service.Shutdown(shutdownCtx); err != nil {
		logger.Error("Service shutdown with error", "err", err)
		os.Exit(1)
	}
}
