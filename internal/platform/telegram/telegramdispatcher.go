// Package telegram implements the Telegram channel transport. Messages go
// out as a single form-encoded POST to the Bot API sendMessage endpoint.
package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tinywideclouds/go-dispatch-service/dispatchservice/config"
	"github.com/tinywideclouds/go-dispatch-service/internal/secrets"
	"github.com/tinywideclouds/go-dispatch-service/pkg/notify"
)

const defaultBaseURL = "https://api.telegram.org"

// maxErrorBody caps how much of an API error response we keep for logs.
const maxErrorBody = 4096

type Dispatcher struct {
	baseURL    string
	secrets    secrets.Provider
	logger     *slog.Logger
	httpClient *http.Client

	token string
}

func NewDispatcher(cfg config.TelegramConfig, provider secrets.Provider, sendTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Dispatcher{
		baseURL:    baseURL,
		secrets:    provider,
		logger:     logger.With("component", "TelegramDispatcher"),
		httpClient: &http.Client{Timeout: sendTimeout},
	}
}

// Connect retrieves the bot token. No network call is made until Send.
func (d *Dispatcher) Connect(_ context.Context) error {
	token, err := d.secrets.Get(secrets.TelegramBotToken)
	if err != nil {
		return err
	}
	d.token = token
	return nil
}

func (d *Dispatcher) Disconnect() error {
	d.token = ""
	return nil
}

func (d *Dispatcher) Send(ctx context.Context, message string, cfg notify.ValidatedConfig) error {
	if cfg.Telegram == nil {
		return &notify.ConfigError{Method: notify.MethodTelegram, Field: "chat_id", Reason: "is required"}
	}

	form := url.Values{}
	form.Set("chat_id", cfg.Telegram.ChatID)
	form.Set("text", message)

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", d.baseURL, d.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return &notify.SendError{Method: notify.MethodTelegram, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return &notify.SendError{Method: notify.MethodTelegram, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		d.logger.Debug("Telegram message accepted", "chat_id", cfg.Telegram.ChatID)
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		// 400 means the chat rejected us, usually because the bot was
		// never added to it. Retrying cannot fix that.
		return &notify.InvalidChatIDError{ChatID: cfg.Telegram.ChatID, Body: string(body)}
	default:
		return &notify.SendError{
			Method: notify.MethodTelegram,
			Err:    fmt.Errorf("bot api returned %d: %s", resp.StatusCode, string(body)),
		}
	}
}
