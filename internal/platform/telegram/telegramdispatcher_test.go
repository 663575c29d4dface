package telegram_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-dispatch-service/dispatchservice/config"
	"github.com/tinywideclouds/go-dispatch-service/internal/platform/telegram"
	"github.com/tinywideclouds/go-dispatch-service/internal/secrets"
	"github.com/tinywideclouds/go-dispatch-service/pkg/notify"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chatConfig(chatID string) notify.ValidatedConfig {
	return notify.ValidatedConfig{
		Method:   notify.MethodTelegram,
		Telegram: &notify.TelegramConfig{ChatID: chatID},
	}
}

func newDispatcher(t *testing.T, serverURL string) *telegram.Dispatcher {
	t.Helper()
	provider := secrets.Static{secrets.TelegramBotToken: "test-token"}
	return telegram.NewDispatcher(
		config.TelegramConfig{BaseURL: serverURL},
		provider,
		5*time.Second,
		newTestLogger(),
	)
}

func TestDispatch_WireFormat(t *testing.T) {
	var calls atomic.Int32

	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		// Exactly the Bot API shape: POST /bot<token>/sendMessage with a
		// form-encoded chat_id and text.
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "123456789", r.PostForm.Get("chat_id"))
		assert.Equal(t, "Hello Telegram!", r.PostForm.Get("text"))

		w.WriteHeader(http.StatusOK)
	}))
	defer mockServer.Close()

	d := newDispatcher(t, mockServer.URL)
	require.NoError(t, d.Connect(context.Background()))
	defer func() { _ = d.Disconnect() }()

	err := d.Send(context.Background(), "Hello Telegram!", chatConfig("123456789"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDispatch_ErrorClassification(t *testing.T) {
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.PostForm.Get("chat_id") {
		case "bad-chat":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
		case "flaky":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer mockServer.Close()

	d := newDispatcher(t, mockServer.URL)
	require.NoError(t, d.Connect(context.Background()))
	defer func() { _ = d.Disconnect() }()

	t.Run("400 Is Permanent InvalidChatID", func(t *testing.T) {
		err := d.Send(context.Background(), "hi", chatConfig("bad-chat"))
		var chatErr *notify.InvalidChatIDError
		require.ErrorAs(t, err, &chatErr)
		assert.Equal(t, "bad-chat", chatErr.ChatID)
		assert.Contains(t, chatErr.Body, "chat not found")
		assert.True(t, notify.Permanent(err))
	})

	t.Run("5xx Is Transient SendError", func(t *testing.T) {
		err := d.Send(context.Background(), "hi", chatConfig("flaky"))
		var sendErr *notify.SendError
		require.ErrorAs(t, err, &sendErr)
		assert.False(t, notify.Permanent(err))
	})

	t.Run("Network Failure Is Transient SendError", func(t *testing.T) {
		down := newDispatcher(t, "http://127.0.0.1:1") // nothing listens here
		require.NoError(t, down.Connect(context.Background()))
		err := down.Send(context.Background(), "hi", chatConfig("123"))
		var sendErr *notify.SendError
		require.ErrorAs(t, err, &sendErr)
		assert.False(t, notify.Permanent(err))
	})
}

func TestConnect_MissingSecret(t *testing.T) {
	d := telegram.NewDispatcher(config.TelegramConfig{}, secrets.Static{}, time.Second, newTestLogger())
	err := d.Connect(context.Background())
	var secretErr *notify.MissingSecretError
	require.ErrorAs(t, err, &secretErr)
	assert.Equal(t, secrets.TelegramBotToken, secretErr.Key)
}
