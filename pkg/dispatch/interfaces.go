// Package dispatch contains the public contracts of the dispatch engine: the
// channel transport, the topic store, and the factory used to hand each
// dispatch task its own transport instance.
package dispatch

import (
	"context"

	"github.com/tinywideclouds/go-dispatch-service/pkg/notify"
)

// Transport is the contract every delivery channel implements (Email, Slack,
// Telegram). A transport is single-use: each dispatch task builds its own via
// a TransportFactory, so implementations need no cross-task locking.
//
// Connect/Disconnect bracket every Send: callers must defer Disconnect as
// soon as Connect succeeds, on every exit path. Disconnect is idempotent.
type Transport interface {
	// Connect acquires the transport handle (e.g. an authenticated API
	// client). It fails with *notify.MissingSecretError when the required
	// secret is absent from the environment.
	Connect(ctx context.Context) error

	// Send delivers message using the validated channel configuration.
	// Transient failures surface as *notify.SendError; permanent ones as
	// their specific type (e.g. *notify.InvalidChatIDError).
	Send(ctx context.Context, message string, cfg notify.ValidatedConfig) error

	// Disconnect releases the handle. Safe to call more than once, and
	// safe to call even when Connect failed.
	Disconnect() error
}

// TransportFactory builds a fresh Transport for one dispatch task.
type TransportFactory func() Transport

// TopicReader is the read side of the store, consumed by the dispatch
// pipeline: resolve a topic's bindings and append audit records.
type TopicReader interface {
	// GetTopic returns the topic or *notify.NotFoundError.
	GetTopic(ctx context.Context, id string) (*notify.Topic, error)

	// NotificationsForTopic returns the bindings for a topic. A topic with
	// no binding yields an empty slice and nil error; a missing topic
	// yields *notify.NotFoundError.
	NotificationsForTopic(ctx context.Context, topicID string) ([]notify.Notification, error)

	// GetNotification returns one binding or *notify.NotFoundError.
	GetNotification(ctx context.Context, id string) (*notify.Notification, error)

	// AppendLog records one dispatch attempt. Append-only.
	AppendLog(ctx context.Context, entry notify.NotificationLog) error
}

// TopicStore is the full persistence contract, adding the CRUD surface used
// by the HTTP layer. CreateNotification and UpdateNotification MUST reject a
// config that fails notify.ValidateConfig before persisting anything.
type TopicStore interface {
	TopicReader

	CreateTopic(ctx context.Context, t *notify.Topic) error
	UpdateTopic(ctx context.Context, t *notify.Topic) error
	// DeleteTopic cascades: the topic's notification bindings go with it.
	DeleteTopic(ctx context.Context, id string) error
	ListTopics(ctx context.Context) ([]notify.Topic, error)

	CreateNotification(ctx context.Context, n *notify.Notification) error
	UpdateNotification(ctx context.Context, n *notify.Notification) error
	DeleteNotification(ctx context.Context, id string) error
	ListNotifications(ctx context.Context) ([]notify.Notification, error)
}
