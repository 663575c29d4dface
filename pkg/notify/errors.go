package notify

import (
	"errors"
	"fmt"
)

// ConfigError reports a channel configuration that fails the method's schema.
// It is permanent: the binding must be corrected by an operator.
type ConfigError struct {
	Method Method
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s config: field %q %s", e.Method, e.Field, e.Reason)
}

// UnsupportedMethodError reports a method value outside the closed table.
// It indicates data corruption or schema drift, never a transient condition.
type UnsupportedMethodError struct {
	Method string
}

func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("unsupported notification method %q", e.Method)
}

// MissingSecretError reports an absent environment secret at transport
// connect time. Permanent for the attempt; an operator must fix the
// environment.
type MissingSecretError struct {
	Key string
}

func (e *MissingSecretError) Error() string {
	return fmt.Sprintf("missing secret %s", e.Key)
}

// NotFoundError reports a missing topic or notification record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// SendError is a transient delivery failure (network error, 5xx, rate limit).
// The dispatch queue retries it after the configured backoff.
type SendError struct {
	Method Method
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%s send failed: %v", e.Method, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// InvalidChatIDError is the permanent subtype of a Telegram send failure:
// the Bot API answered 400, which means the bot has not been added to the
// chat. Retrying cannot help.
type InvalidChatIDError struct {
	ChatID string
	Body   string
}

func (e *InvalidChatIDError) Error() string {
	return fmt.Sprintf("telegram rejected chat_id %q (is the bot a member of the chat?): %s", e.ChatID, e.Body)
}

// Permanent reports whether err can never succeed on retry. Unclassified
// errors are treated as transient so that storage blips and similar get a
// second chance.
func Permanent(err error) bool {
	var (
		cfgErr    *ConfigError
		methodErr *UnsupportedMethodError
		secretErr *MissingSecretError
		nfErr     *NotFoundError
		chatErr   *InvalidChatIDError
	)
	switch {
	case errors.As(err, &cfgErr),
		errors.As(err, &methodErr),
		errors.As(err, &secretErr),
		errors.As(err, &nfErr),
		errors.As(err, &chatErr):
		return true
	}
	return false
}
