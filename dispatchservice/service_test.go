package dispatchservice_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-dispatch-service/dispatchservice"
	"github.com/tinywideclouds/go-dispatch-service/dispatchservice/config"
	"github.com/tinywideclouds/go-dispatch-service/internal/queue"
	"github.com/tinywideclouds/go-dispatch-service/pkg/dispatch"
	"github.com/tinywideclouds/go-dispatch-service/pkg/notify"
)

// fakeStore is a minimal in-memory TopicStore for wiring tests.
type fakeStore struct {
	mu            sync.Mutex
	topics        map[string]notify.Topic
	notifications map[string]notify.Notification
	logs          []notify.NotificationLog
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		topics:        make(map[string]notify.Topic),
		notifications: make(map[string]notify.Notification),
	}
}

func (s *fakeStore) GetTopic(_ context.Context, id string) (*notify.Topic, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.topics[id]
	if !ok {
		return nil, &notify.NotFoundError{Kind: "topic", ID: id}
	}
	return &t, nil
}

func (s *fakeStore) NotificationsForTopic(_ context.Context, topicID string) ([]notify.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.topics[topicID]; !ok {
		return nil, &notify.NotFoundError{Kind: "topic", ID: topicID}
	}
	out := make([]notify.Notification, 0)
	for _, n := range s.notifications {
		if n.TopicID == topicID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *fakeStore) GetNotification(_ context.Context, id string) (*notify.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil, &notify.NotFoundError{Kind: "notification", ID: id}
	}
	return &n, nil
}

func (s *fakeStore) AppendLog(_ context.Context, entry notify.NotificationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

func (s *fakeStore) CreateTopic(_ context.Context, t *notify.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[t.ID] = *t
	return nil
}

func (s *fakeStore) UpdateTopic(_ context.Context, t *notify.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topics[t.ID] = *t
	return nil
}

func (s *fakeStore) DeleteTopic(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.topics, id)
	return nil
}

func (s *fakeStore) ListTopics(_ context.Context) ([]notify.Topic, error) { return nil, nil }

func (s *fakeStore) CreateNotification(_ context.Context, n *notify.Notification) error {
	if _, err := notify.ValidateConfig(n.Method, n.Config); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.ID] = *n
	return nil
}

func (s *fakeStore) UpdateNotification(_ context.Context, n *notify.Notification) error {
	return s.CreateNotification(context.Background(), n)
}

func (s *fakeStore) DeleteNotification(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.notifications, id)
	return nil
}

func (s *fakeStore) ListNotifications(_ context.Context) ([]notify.Notification, error) {
	return nil, nil
}

func (s *fakeStore) outcomes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.logs))
	for _, entry := range s.logs {
		out = append(out, entry.Outcome)
	}
	return out
}

// recordingTransport captures sends and signals each one.
type recordingTransport struct {
	mu       sync.Mutex
	messages []string
	sent     chan struct{}
}

func (t *recordingTransport) Connect(context.Context) error { return nil }
func (t *recordingTransport) Disconnect() error             { return nil }
func (t *recordingTransport) Send(_ context.Context, message string, _ notify.ValidatedConfig) error {
	t.mu.Lock()
	t.messages = append(t.messages, message)
	t.mu.Unlock()
	t.sent <- struct{}{}
	return nil
}

func newWrapper(t *testing.T, store dispatch.TopicStore, transport dispatch.Transport) *dispatchservice.Wrapper {
	t.Helper()

	cfg := &config.Config{
		ProjectID:          "test-project",
		ListenAddr:         "127.0.0.1:0",
		NumDispatchWorkers: 1,
		RetryMax:           3,
		RetryBackoff:       time.Minute,
		SendTimeout:        time.Second,
	}
	transports := map[notify.Method]dispatch.TransportFactory{
		notify.MethodSlack: func() dispatch.Transport { return transport },
	}

	clock := clockwork.NewFakeClock()
	backend := queue.NewMemoryBackend(clock)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := dispatchservice.New(cfg, store, transports, backend, clock, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = svc.Start(ctx) }()
	t.Cleanup(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = svc.Shutdown(shutdownCtx)
		cancel()
	})

	return svc
}

func TestService_DispatchEndToEnd(t *testing.T) {
	store := newFakeStore()
	require.NoError(t, store.CreateTopic(context.Background(), &notify.Topic{ID: "t-1", Name: "alerts"}))
	require.NoError(t, store.CreateNotification(context.Background(), &notify.Notification{
		ID:      "n-1",
		TopicID: "t-1",
		Method:  notify.MethodSlack,
		Config:  notify.Config{"channel": "#ops"},
	}))

	transport := &recordingTransport{sent: make(chan struct{}, 10)}
	svc := newWrapper(t, store, transport)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatcher",
		bytes.NewBufferString(`{"topic_id":"t-1","description":"disk almost full"}`))
	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	select {
	case <-transport.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for async delivery")
	}

	transport.mu.Lock()
	messages := append([]string(nil), transport.messages...)
	transport.mu.Unlock()
	require.Len(t, messages, 1)
	assert.Equal(t, "disk almost full", messages[0])

	assert.Eventually(t, func() bool {
		outcomes := store.outcomes()
		return len(outcomes) == 1 && outcomes[0] == notify.OutcomeDelivered
	}, 2*time.Second, 10*time.Millisecond)
}

func TestService_DispatchUnknownTopic(t *testing.T) {
	store := newFakeStore()
	transport := &recordingTransport{sent: make(chan struct{}, 1)}
	svc := newWrapper(t, store, transport)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatcher",
		bytes.NewBufferString(`{"topic_id":"nope","description":"hi"}`))
	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "No notifications found for this topic")
}

func TestService_HealthEndpoint(t *testing.T) {
	store := newFakeStore()
	transport := &recordingTransport{sent: make(chan struct{}, 1)}
	svc := newWrapper(t, store, transport)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
