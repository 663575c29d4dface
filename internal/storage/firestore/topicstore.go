// Package firestore persists topics, channel bindings, and dispatch logs in
// Google Cloud Firestore.
package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-dispatch-service/pkg/notify"
)

const (
	topicsCollection        = "topics"
	notificationsCollection = "notifications"
	logsCollection          = "notification_logs"
)

// TopicStore implements dispatch.TopicStore on top of Firestore. Topics and
// notifications live in flat root collections; bindings carry a topic_id
// field so a topic's notifications are a single equality query.
type TopicStore struct {
	client *firestore.Client
}

func NewTopicStore(client *firestore.Client) *TopicStore {
	return &TopicStore{client: client}
}

// topicRecord is the internal DB representation of a topic.
type topicRecord struct {
	Name        string    `firestore:"name"`
	Description string    `firestore:"description"`
	CreatedAt   time.Time `firestore:"created_at"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

// notificationRecord is the internal DB representation of a binding. Config
// is stored as the raw map so new methods need no schema migration.
type notificationRecord struct {
	TopicID   string         `firestore:"topic_id"`
	Method    string         `firestore:"method"`
	Config    map[string]any `firestore:"config"`
	CreatedAt time.Time      `firestore:"created_at"`
	UpdatedAt time.Time      `firestore:"updated_at"`
}

type logRecord struct {
	Actor          string    `firestore:"actor"`
	NotificationID string    `firestore:"notification_id"`
	TopicID        string    `firestore:"topic_id"`
	Message        string    `firestore:"message"`
	Outcome        string    `firestore:"outcome"`
	Error          string    `firestore:"error,omitempty"`
	Attempt        int       `firestore:"attempt"`
	CreatedAt      time.Time `firestore:"created_at"`
}

// --- Topics ---

func (s *TopicStore) CreateTopic(ctx context.Context, t *notify.Topic) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := s.client.Collection(topicsCollection).Doc(t.ID).Set(ctx, topicRecord{
		Name:        t.Name,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("create topic: %w", err)
	}
	return nil
}

func (s *TopicStore) GetTopic(ctx context.Context, id string) (*notify.Topic, error) {
	doc, err := s.client.Collection(topicsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, &notify.NotFoundError{Kind: "topic", ID: id}
		}
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return topicFromDoc(doc)
}

func (s *TopicStore) UpdateTopic(ctx context.Context, t *notify.Topic) error {
	ref := s.client.Collection(topicsCollection).Doc(t.ID)
	existing, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return &notify.NotFoundError{Kind: "topic", ID: t.ID}
		}
		return fmt.Errorf("update topic: %w", err)
	}

	var record topicRecord
	if err = existing.DataTo(&record); err != nil {
		return fmt.Errorf("update topic: decode existing: %w", err)
	}
	t.CreatedAt = record.CreatedAt
	t.UpdatedAt = time.Now().UTC()

	_, err = ref.Set(ctx, topicRecord{
		Name:        t.Name,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("update topic: %w", err)
	}
	return nil
}

// DeleteTopic removes the topic and every binding attached to it.
func (s *TopicStore) DeleteTopic(ctx context.Context, id string) error {
	ref := s.client.Collection(topicsCollection).Doc(id)
	if _, err := ref.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return &notify.NotFoundError{Kind: "topic", ID: id}
		}
		return fmt.Errorf("delete topic: %w", err)
	}

	bindings := s.client.Collection(notificationsCollection).
		Where("topic_id", "==", id).Documents(ctx)
	defer bindings.Stop()

	bw := s.client.BulkWriter(ctx)
	for {
		doc, err := bindings.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("delete topic: list bindings: %w", err)
		}
		if _, err = bw.Delete(doc.Ref); err != nil {
			return fmt.Errorf("delete topic: cascade: %w", err)
		}
	}
	if _, err := bw.Delete(ref); err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	bw.End()
	return nil
}

func (s *TopicStore) ListTopics(ctx context.Context) ([]notify.Topic, error) {
	iter := s.client.Collection(topicsCollection).OrderBy("created_at", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	topics := make([]notify.Topic, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list topics: %w", err)
		}
		t, err := topicFromDoc(doc)
		if err != nil {
			return nil, err
		}
		topics = append(topics, *t)
	}
	return topics, nil
}

// --- Notifications ---

func (s *TopicStore) CreateNotification(ctx context.Context, n *notify.Notification) error {
	if _, err := notify.ValidateConfig(n.Method, n.Config); err != nil {
		return err
	}
	if _, err := s.GetTopic(ctx, n.TopicID); err != nil {
		return err
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now

	_, err := s.client.Collection(notificationsCollection).Doc(n.ID).Set(ctx, notificationRecord{
		TopicID:   n.TopicID,
		Method:    string(n.Method),
		Config:    n.Config,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (s *TopicStore) GetNotification(ctx context.Context, id string) (*notify.Notification, error) {
	doc, err := s.client.Collection(notificationsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, &notify.NotFoundError{Kind: "notification", ID: id}
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	return notificationFromDoc(doc)
}

func (s *TopicStore) UpdateNotification(ctx context.Context, n *notify.Notification) error {
	if _, err := notify.ValidateConfig(n.Method, n.Config); err != nil {
		return err
	}

	ref := s.client.Collection(notificationsCollection).Doc(n.ID)
	existing, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return &notify.NotFoundError{Kind: "notification", ID: n.ID}
		}
		return fmt.Errorf("update notification: %w", err)
	}

	var record notificationRecord
	if err = existing.DataTo(&record); err != nil {
		return fmt.Errorf("update notification: decode existing: %w", err)
	}
	n.CreatedAt = record.CreatedAt
	n.UpdatedAt = time.Now().UTC()

	_, err = ref.Set(ctx, notificationRecord{
		TopicID:   n.TopicID,
		Method:    string(n.Method),
		Config:    n.Config,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	return nil
}

func (s *TopicStore) DeleteNotification(ctx context.Context, id string) error {
	ref := s.client.Collection(notificationsCollection).Doc(id)
	if _, err := ref.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return &notify.NotFoundError{Kind: "notification", ID: id}
		}
		return fmt.Errorf("delete notification: %w", err)
	}
	if _, err := ref.Delete(ctx); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}

func (s *TopicStore) ListNotifications(ctx context.Context) ([]notify.Notification, error) {
	iter := s.client.Collection(notificationsCollection).OrderBy("created_at", firestore.Asc).Documents(ctx)
	defer iter.Stop()
	return collectNotifications(iter)
}

// NotificationsForTopic returns the bindings attached to a topic. The topic
// must exist; a topic without bindings is an empty slice.
func (s *TopicStore) NotificationsForTopic(ctx context.Context, topicID string) ([]notify.Notification, error) {
	if _, err := s.GetTopic(ctx, topicID); err != nil {
		return nil, err
	}
	iter := s.client.Collection(notificationsCollection).
		Where("topic_id", "==", topicID).Documents(ctx)
	defer iter.Stop()
	return collectNotifications(iter)
}

// --- Logs ---

func (s *TopicStore) AppendLog(ctx context.Context, entry notify.NotificationLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.client.Collection(logsCollection).Doc(entry.ID).Set(ctx, logRecord{
		Actor:          entry.Actor,
		NotificationID: entry.NotificationID,
		TopicID:        entry.TopicID,
		Message:        entry.Message,
		Outcome:        entry.Outcome,
		Error:          entry.Error,
		Attempt:        entry.Attempt,
		CreatedAt:      entry.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// LogsForTopic returns the audit trail for a topic, newest first.
func (s *TopicStore) LogsForTopic(ctx context.Context, topicID string) ([]notify.NotificationLog, error) {
	iter := s.client.Collection(logsCollection).
		Where("topic_id", "==", topicID).
		OrderBy("created_at", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	logs := make([]notify.NotificationLog, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list logs: %w", err)
		}
		var record logRecord
		if err = doc.DataTo(&record); err != nil {
			return nil, fmt.Errorf("list logs: decode %s: %w", doc.Ref.ID, err)
		}
		logs = append(logs, notify.NotificationLog{
			ID:             doc.Ref.ID,
			Actor:          record.Actor,
			NotificationID: record.NotificationID,
			TopicID:        record.TopicID,
			Message:        record.Message,
			Outcome:        record.Outcome,
			Error:          record.Error,
			Attempt:        record.Attempt,
			CreatedAt:      record.CreatedAt,
		})
	}
	return logs, nil
}

// --- Helpers ---

func topicFromDoc(doc *firestore.DocumentSnapshot) (*notify.Topic, error) {
	var record topicRecord
	if err := doc.DataTo(&record); err != nil {
		return nil, fmt.Errorf("decode topic %s: %w", doc.Ref.ID, err)
	}
	return &notify.Topic{
		ID:          doc.Ref.ID,
		Name:        record.Name,
		Description: record.Description,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
	}, nil
}

func notificationFromDoc(doc *firestore.DocumentSnapshot) (*notify.Notification, error) {
	var record notificationRecord
	if err := doc.DataTo(&record); err != nil {
		return nil, fmt.Errorf("decode notification %s: %w", doc.Ref.ID, err)
	}
	return &notify.Notification{
		ID:        doc.Ref.ID,
		TopicID:   record.TopicID,
		Method:    notify.Method(record.Method),
		Config:    record.Config,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}, nil
}

func collectNotifications(iter *firestore.DocumentIterator) ([]notify.Notification, error) {
	notifications := make([]notify.Notification, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list notifications: %w", err)
		}
		n, err := notificationFromDoc(doc)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *n)
	}
	return notifications, nil
}
