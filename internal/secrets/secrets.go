// Package secrets abstracts where transport credentials come from, so tests
// can substitute a fake provider without mutating the real process
// environment.
package secrets

import (
	"os"

	"github.com/tinywideclouds/go-dispatch-service/pkg/notify"
)

// Secret keys the transports look up at connect time.
const (
	SlackAPIToken     = "SLACK_API_TOKEN"
	TelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	EmailHostPassword = "EMAIL_HOST_PASSWORD"
)

// Provider yields named secrets. Get fails with *notify.MissingSecretError
// when the key is absent or empty; Lookup is the optional form.
type Provider interface {
	Get(key string) (string, error)
	Lookup(key string) (string, bool)
}

// Env reads secrets from the process environment.
type Env struct{}

func NewEnv() Env { return Env{} }

func (Env) Get(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", &notify.MissingSecretError{Key: key}
	}
	return val, nil
}

func (Env) Lookup(key string) (string, bool) {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return "", false
	}
	return val, true
}

// Static serves secrets from a fixed map. Test use only.
type Static map[string]string

func (s Static) Get(key string) (string, error) {
	val, ok := s[key]
	if !ok || val == "" {
		return "", &notify.MissingSecretError{Key: key}
	}
	return val, nil
}

func (s Static) Lookup(key string) (string, bool) {
	val, ok := s[key]
	return val, ok && val != ""
}
