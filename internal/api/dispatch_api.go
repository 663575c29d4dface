package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-dispatch-service/internal/pipeline"
	"github.com/tinywideclouds/go-dispatch-service/internal/queue"
	"github.com/tinywideclouds/go-dispatch-service/pkg/dispatch"
	"github.com/tinywideclouds/go-dispatch-service/pkg/notify"
)

// Enqueuer schedules dispatch jobs; satisfied by queue.Service.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload []byte) (queue.Job, error)
}

// DispatchAPI accepts dispatch requests and fans them out: one queue job per
// channel binding attached to the topic. Delivery itself is asynchronous; a
// 200 only means the jobs were accepted.
type DispatchAPI struct {
	Store  dispatch.TopicReader
	Queue  Enqueuer
	Logger *slog.Logger
}

func NewDispatchAPI(store dispatch.TopicReader, queue Enqueuer, logger *slog.Logger) *DispatchAPI {
	return &DispatchAPI{
		Store:  store,
		Queue:  queue,
		Logger: logger.With("component", "DispatchAPI"),
	}
}

type DispatchRequest struct {
	TopicID     string `json:"topic_id"`
	Description string `json:"description"`
}

func (api *DispatchAPI) Dispatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.TopicID == "" {
		writeJSONError(w, http.StatusBadRequest, "missing topic_id")
		return
	}

	bindings, err := api.Store.NotificationsForTopic(ctx, req.TopicID)
	if err != nil {
		var nfErr *notify.NotFoundError
		if errors.As(err, &nfErr) {
			writeJSONError(w, http.StatusNotFound, "No notifications found for this topic")
			return
		}
		api.Logger.Error("Failed to resolve topic bindings", "topic_id", req.TopicID, "err", err)
		writeJSONError(w, http.StatusInternalServerError, "storage failed")
		return
	}
	if len(bindings) == 0 {
		writeJSONError(w, http.StatusNotFound, "No notifications found for this topic")
		return
	}

	for _, binding := range bindings {
		payload, err := pipeline.DispatchJob{
			TopicID:        req.TopicID,
			NotificationID: binding.ID,
			Message:        req.Description,
		}.Encode()
		if err != nil {
			api.Logger.Error("Failed to encode dispatch job", "topic_id", req.TopicID, "err", err)
			writeJSONError(w, http.StatusInternalServerError, "dispatch failed")
			return
		}
		job, err := api.Queue.Enqueue(ctx, payload)
		if err != nil {
			api.Logger.Error("Failed to enqueue dispatch job", "topic_id", req.TopicID, "err", err)
			writeJSONError(w, http.StatusInternalServerError, "dispatch failed")
			return
		}
		api.Logger.Info("Dispatch job queued", "topic_id", req.TopicID, "notification_id", binding.ID, "job_id", job.ID)
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Notification sent"})
}
