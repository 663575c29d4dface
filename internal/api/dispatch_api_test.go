package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-dispatch-service/internal/api"
	"github.com/tinywideclouds/go-dispatch-service/internal/pipeline"
	"github.com/tinywideclouds/go-dispatch-service/internal/queue"
	"github.com/tinywideclouds/go-dispatch-service/pkg/notify"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mocks ---

type mockTopicReader struct {
	mock.Mock
}

func (m *mockTopicReader) GetTopic(ctx context.Context, id string) (*notify.Topic, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notify.Topic), args.Error(1)
}
func (m *mockTopicReader) NotificationsForTopic(ctx context.Context, topicID string) ([]notify.Notification, error) {
	args := m.Called(ctx, topicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]notify.Notification), args.Error(1)
}
func (m *mockTopicReader) GetNotification(ctx context.Context, id string) (*notify.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notify.Notification), args.Error(1)
}
func (m *mockTopicReader) AppendLog(ctx context.Context, entry notify.NotificationLog) error {
	return m.Called(ctx, entry).Error(0)
}

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, payload []byte) (queue.Job, error) {
	args := m.Called(ctx, payload)
	return args.Get(0).(queue.Job), args.Error(1)
}

func postDispatch(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatcher", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Message
}

// --- Tests ---

func TestDispatchAPI_FansOutOneJobPerBinding(t *testing.T) {
	store := new(mockTopicReader)
	enqueuer := new(mockEnqueuer)

	bindings := []notify.Notification{
		{ID: "n-1", TopicID: "t-1", Method: notify.MethodSlack},
		{ID: "n-2", TopicID: "t-1", Method: notify.MethodEmail},
	}
	store.On("NotificationsForTopic", mock.Anything, "t-1").Return(bindings, nil).Once()

	var payloads [][]byte
	enqueuer.On("Enqueue", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			payloads = append(payloads, args.Get(1).([]byte))
		}).
		Return(queue.Job{ID: "job"}, nil).Times(2)

	dispatchAPI := api.NewDispatchAPI(store, enqueuer, newTestLogger())
	rec := postDispatch(t, dispatchAPI.Dispatch, `{"topic_id":"t-1","description":"deploy finished"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Notification sent", decodeMessage(t, rec))

	require.Len(t, payloads, 2)
	seen := make([]string, 0, 2)
	for _, payload := range payloads {
		job, err := pipeline.DecodeDispatchJob(payload)
		require.NoError(t, err)
		assert.Equal(t, "t-1", job.TopicID)
		assert.Equal(t, "deploy finished", job.Message)
		seen = append(seen, job.NotificationID)
	}
	assert.ElementsMatch(t, []string{"n-1", "n-2"}, seen)

	store.AssertExpectations(t)
	enqueuer.AssertExpectations(t)
}

func TestDispatchAPI_UnknownTopicIs404(t *testing.T) {
	store := new(mockTopicReader)
	enqueuer := new(mockEnqueuer)

	store.On("NotificationsForTopic", mock.Anything, "missing").
		Return(nil, &notify.NotFoundError{Kind: "topic", ID: "missing"}).Once()

	dispatchAPI := api.NewDispatchAPI(store, enqueuer, newTestLogger())
	rec := postDispatch(t, dispatchAPI.Dispatch, `{"topic_id":"missing","description":"hi"}`)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No notifications found for this topic", decodeMessage(t, rec))
	enqueuer.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestDispatchAPI_TopicWithoutBindingsIs404(t *testing.T) {
	store := new(mockTopicReader)
	enqueuer := new(mockEnqueuer)

	store.On("NotificationsForTopic", mock.Anything, "t-1").
		Return([]notify.Notification{}, nil).Once()

	dispatchAPI := api.NewDispatchAPI(store, enqueuer, newTestLogger())
	rec := postDispatch(t, dispatchAPI.Dispatch, `{"topic_id":"t-1","description":"hi"}`)

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "No notifications found for this topic", decodeMessage(t, rec))
	enqueuer.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestDispatchAPI_BadRequests(t *testing.T) {
	dispatchAPI := api.NewDispatchAPI(new(mockTopicReader), new(mockEnqueuer), newTestLogger())

	t.Run("Invalid JSON", func(t *testing.T) {
		rec := postDispatch(t, dispatchAPI.Dispatch, `{not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Missing Topic ID", func(t *testing.T) {
		rec := postDispatch(t, dispatchAPI.Dispatch, `{"description":"hi"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDispatchAPI_EnqueueFailureIs500(t *testing.T) {
	store := new(mockTopicReader)
	enqueuer := new(mockEnqueuer)

	bindings := []notify.Notification{{ID: "n-1", TopicID: "t-1", Method: notify.MethodSlack}}
	store.On("NotificationsForTopic", mock.Anything, "t-1").Return(bindings, nil).Once()
	enqueuer.On("Enqueue", mock.Anything, mock.Anything).
		Return(queue.Job{}, assert.AnError).Once()

	dispatchAPI := api.NewDispatchAPI(store, enqueuer, newTestLogger())
	rec := postDispatch(t, dispatchAPI.Dispatch, `{"topic_id":"t-1","description":"hi"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
