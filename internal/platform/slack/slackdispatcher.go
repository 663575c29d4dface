// Package slack implements the Slack channel transport on top of the
// official slack-go client: one chat.postMessage call per dispatch.
package slack

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/tinywideclouds/go-dispatch-service/dispatchservice/config"
	"github.com/tinywideclouds/go-dispatch-service/internal/secrets"
	"github.com/tinywideclouds/go-dispatch-service/pkg/notify"
)

// PostMessageClient defines the subset of the slack-go API we use.
// This interface allows us to mock the client for unit testing.
type PostMessageClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

type Dispatcher struct {
	apiURL  string
	secrets secrets.Provider
	timeout time.Duration
	logger  *slog.Logger

	client PostMessageClient
}

func NewDispatcher(cfg config.SlackConfig, provider secrets.Provider, sendTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		apiURL:  cfg.APIURL,
		secrets: provider,
		timeout: sendTimeout,
		logger:  logger.With("component", "SlackDispatcher"),
	}
}

// Connect builds a client authenticated with the bot token from the secrets
// provider.
func (d *Dispatcher) Connect(_ context.Context) error {
	token, err := d.secrets.Get(secrets.SlackAPIToken)
	if err != nil {
		return err
	}

	opts := []slackapi.Option{
		slackapi.OptionHTTPClient(&http.Client{Timeout: d.timeout}),
	}
	if d.apiURL != "" {
		opts = append(opts, slackapi.OptionAPIURL(d.apiURL))
	}
	d.client = slackapi.New(token, opts...)
	return nil
}

func (d *Dispatcher) Disconnect() error {
	d.client = nil
	return nil
}

func (d *Dispatcher) Send(ctx context.Context, message string, cfg notify.ValidatedConfig) error {
	if cfg.Slack == nil {
		return &notify.ConfigError{Method: notify.MethodSlack, Field: "channel", Reason: "is required"}
	}

	_, ts, err := d.client.PostMessageContext(ctx, cfg.Slack.Channel,
		slackapi.MsgOptionText(message, false),
	)
	if err != nil {
		// slack-go folds the API's error body ("channel_not_found", ...)
		// into err, so the SendError carries it verbatim.
		return &notify.SendError{Method: notify.MethodSlack, Err: err}
	}

	d.logger.Debug("Slack message posted", "channel", cfg.Slack.Channel, "ts", ts)
	return nil
}
