package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/tinywideclouds/go-dispatch-service/pkg/dispatch"
	"github.com/tinywideclouds/go-dispatch-service/pkg/notify"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns the value or a specific error if not found.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedTopicStore is a Decorator that adds Read-Aside caching to any
// TopicStore. Only the dispatch hot path is cached: the topic-to-bindings
// resolution that runs on every incoming dispatch request. CRUD writes go
// straight to the real store and invalidate the affected topic's entry.
type CachedTopicStore struct {
	realStore dispatch.TopicStore
	cache     CacheClient
	ttl       time.Duration
}

// NewCachedTopicStore creates the decorator.
func NewCachedTopicStore(realStore dispatch.TopicStore, cache CacheClient, ttl time.Duration) *CachedTopicStore {
	return &CachedTopicStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
	}
}

// --- READ PATH (Read-Aside) ---

func (s *CachedTopicStore) NotificationsForTopic(ctx context.Context, topicID string) ([]notify.Notification, error) {
	key := s.cacheKey(topicID)
	var cached []notify.Notification

	// 1. Try Cache
	err := s.cache.Get(ctx, key, &cached)
	if err == nil {
		// Cache Hit
		return cached, nil
	}

	// 2. Fallback to Real Store (Firestore)
	fresh, err := s.realStore.NotificationsForTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}

	// 3. Populate Cache (Fire and Forget)
	// If Redis is down we just serve from DB.
	_ = s.cache.Set(ctx, key, fresh, s.ttl)

	return fresh, nil
}

func (s *CachedTopicStore) GetTopic(ctx context.Context, id string) (*notify.Topic, error) {
	return s.realStore.GetTopic(ctx, id)
}

func (s *CachedTopicStore) GetNotification(ctx context.Context, id string) (*notify.Notification, error) {
	return s.realStore.GetNotification(ctx, id)
}

func (s *CachedTopicStore) ListTopics(ctx context.Context) ([]notify.Topic, error) {
	return s.realStore.ListTopics(ctx)
}

func (s *CachedTopicStore) ListNotifications(ctx context.Context) ([]notify.Notification, error) {
	return s.realStore.ListNotifications(ctx)
}

func (s *CachedTopicStore) AppendLog(ctx context.Context, entry notify.NotificationLog) error {
	return s.realStore.AppendLog(ctx, entry)
}

// --- WRITE PATHS (Invalidate-on-Write) ---

func (s *CachedTopicStore) CreateTopic(ctx context.Context, t *notify.Topic) error {
	return s.realStore.CreateTopic(ctx, t)
}

func (s *CachedTopicStore) UpdateTopic(ctx context.Context, t *notify.Topic) error {
	return s.realStore.UpdateTopic(ctx, t)
}

func (s *CachedTopicStore) DeleteTopic(ctx context.Context, id string) error {
	if err := s.realStore.DeleteTopic(ctx, id); err != nil {
		return err
	}
	// Even though the DB delete succeeded, the cache MUST be cleared so the
	// dispatch path stops resolving the dead topic immediately.
	return s.invalidate(ctx, id)
}

func (s *CachedTopicStore) CreateNotification(ctx context.Context, n *notify.Notification) error {
	if err := s.realStore.CreateNotification(ctx, n); err != nil {
		return err
	}
	return s.invalidate(ctx, n.TopicID)
}

func (s *CachedTopicStore) UpdateNotification(ctx context.Context, n *notify.Notification) error {
	// The update may move the binding to a different topic; look up the old
	// one first so both entries get invalidated.
	old, err := s.realStore.GetNotification(ctx, n.ID)
	if err != nil {
		return err
	}
	if err = s.realStore.UpdateNotification(ctx, n); err != nil {
		return err
	}
	if old.TopicID != n.TopicID {
		if err = s.invalidate(ctx, old.TopicID); err != nil {
			return err
		}
	}
	return s.invalidate(ctx, n.TopicID)
}

func (s *CachedTopicStore) DeleteNotification(ctx context.Context, id string) error {
	old, err := s.realStore.GetNotification(ctx, id)
	if err != nil {
		return err
	}
	if err = s.realStore.DeleteNotification(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, old.TopicID)
}

// --- Helpers ---

func (s *CachedTopicStore) invalidate(ctx context.Context, topicID string) error {
	// The next NotificationsForTopic is forced back to Firestore.
	return s.cache.Del(ctx, s.cacheKey(topicID))
}

func (s *CachedTopicStore) cacheKey(topicID string) string {
	return fmt.Sprintf("dispatch:bindings:%s", topicID)
}
