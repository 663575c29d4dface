// Package email implements the Email channel transport over SMTP submission
// using go-mail.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-dispatch-service/dispatchservice/config"
	"github.com/tinywideclouds/go-dispatch-service/internal/secrets"
	"github.com/tinywideclouds/go-dispatch-service/pkg/notify"
	"github.com/wneessen/go-mail"
)

// MailSender defines the subset of the go-mail client we use.
// This interface allows us to mock the client for unit testing.
type MailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type Dispatcher struct {
	smtp    config.SMTPConfig
	secrets secrets.Provider
	timeout time.Duration
	logger  *slog.Logger

	// dial builds the SMTP client; replaced in tests.
	dial   func() (MailSender, error)
	sender MailSender
}

func NewDispatcher(cfg config.SMTPConfig, provider secrets.Provider, sendTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		smtp:    cfg,
		secrets: provider,
		timeout: sendTimeout,
		logger:  logger.With("component", "EmailDispatcher"),
	}
	d.dial = d.newClient
	return d
}

func (d *Dispatcher) newClient() (MailSender, error) {
	opts := []mail.Option{
		mail.WithPort(d.smtp.Port),
		mail.WithTimeout(d.timeout),
	}
	// Password is an optional secret: open relays on a trusted network run
	// without it, anything else authenticates.
	if password, ok := d.secrets.Lookup(secrets.EmailHostPassword); ok {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(d.smtp.Username),
			mail.WithPassword(password),
		)
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}

	client, err := mail.NewClient(d.smtp.Host, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (d *Dispatcher) Connect(_ context.Context) error {
	sender, err := d.dial()
	if err != nil {
		return &notify.SendError{Method: notify.MethodEmail, Err: err}
	}
	d.sender = sender
	return nil
}

func (d *Dispatcher) Disconnect() error {
	d.sender = nil
	return nil
}

func (d *Dispatcher) Send(ctx context.Context, message string, cfg notify.ValidatedConfig) error {
	if cfg.Email == nil {
		return &notify.ConfigError{Method: notify.MethodEmail, Field: "recipient_list", Reason: "is required"}
	}

	subject := cfg.Email.Subject
	if subject == "" {
		subject = DefaultSubject(message)
	}

	msg := mail.NewMsg()
	if err := msg.From(d.smtp.From); err != nil {
		return &notify.ConfigError{Method: notify.MethodEmail, Field: "from", Reason: fmt.Sprintf("is not a valid address: %v", err)}
	}
	if err := msg.To(cfg.Email.RecipientList...); err != nil {
		return &notify.ConfigError{Method: notify.MethodEmail, Field: "recipient_list", Reason: fmt.Sprintf("is not a valid address: %v", err)}
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, message)

	if err := d.sender.DialAndSendWithContext(ctx, msg); err != nil {
		return &notify.SendError{Method: notify.MethodEmail, Err: err}
	}

	d.logger.Debug("Email submitted", "recipients", len(cfg.Email.RecipientList), "subject", subject)
	return nil
}

// DefaultSubject derives a subject line from the message body when the
// binding's config does not carry one: the first 10 characters plus an
// ellipsis.
func DefaultSubject(message string) string {
	r := []rune(message)
	if len(r) > 10 {
		r = r[:10]
	}
	return "Notification: " + string(r) + "..."
}
