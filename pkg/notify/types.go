// Package notify contains the public domain models for the dispatch service:
// topics, channel bindings, the method/config pairing, and the error taxonomy
// the dispatch pipeline is built around.
package notify

import (
	"time"
)

// Method identifies a delivery channel. The set of methods is closed; the
// per-method required config keys are enforced by ValidateConfig.
type Method string

const (
	MethodEmail    Method = "Email"
	MethodSlack    Method = "Slack"
	MethodTelegram Method = "Telegram"
)

// Known reports whether m is one of the supported delivery methods.
func (m Method) Known() bool {
	switch m {
	case MethodEmail, MethodSlack, MethodTelegram:
		return true
	}
	return false
}

// Config is the raw, method-determined configuration mapping as stored.
// Its required keys depend on the Notification's Method; use ValidateConfig
// to obtain the typed form.
type Config map[string]any

// EmailConfig is the validated configuration for the Email method.
type EmailConfig struct {
	RecipientList []string `json:"recipient_list" validate:"required,min=1,dive,email"`
	Subject       string   `json:"subject,omitempty"`
}

// SlackConfig is the validated configuration for the Slack method.
type SlackConfig struct {
	Channel string `json:"channel" validate:"required"`
}

// TelegramConfig is the validated configuration for the Telegram method.
type TelegramConfig struct {
	ChatID string `json:"chat_id" validate:"required"`
}

// ValidatedConfig is the typed result of ValidateConfig. Exactly one of the
// per-method fields is set, matching Method.
type ValidatedConfig struct {
	Method   Method
	Email    *EmailConfig
	Slack    *SlackConfig
	Telegram *TelegramConfig
}

// Topic is a named destination a channel binding can be attached to.
type Topic struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Notification binds a Topic to a delivery method plus its configuration.
// Invariant: Config satisfies ValidateConfig for Method at all times; the
// store rejects writes that do not.
type Notification struct {
	ID        string    `json:"id"`
	TopicID   string    `json:"topic_id"`
	Method    Method    `json:"method"`
	Config    Config    `json:"config"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NotificationLog is the append-only audit record written once per dispatch
// attempt. It is never mutated after creation.
type NotificationLog struct {
	ID             string    `json:"id"`
	Actor          string    `json:"actor"`
	NotificationID string    `json:"notification_id"`
	TopicID        string    `json:"topic_id"`
	Message        string    `json:"message"`
	Outcome        string    `json:"outcome"`
	Error          string    `json:"error,omitempty"`
	Attempt        int       `json:"attempt"`
	CreatedAt      time.Time `json:"created_at"`
}

// Log outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeRetrying  = "retrying"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)
