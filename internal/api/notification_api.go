package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tinywideclouds/go-dispatch-service/pkg/dispatch"
	"github.com/tinywideclouds/go-dispatch-service/pkg/notify"
)

// NotificationAPI is the CRUD surface for channel bindings. Create and
// Update validate the method's config before anything is persisted, so a bad
// config never reaches the store.
type NotificationAPI struct {
	Store  dispatch.TopicStore
	Logger *slog.Logger
}

func NewNotificationAPI(store dispatch.TopicStore, logger *slog.Logger) *NotificationAPI {
	return &NotificationAPI{
		Store:  store,
		Logger: logger.With("component", "NotificationAPI"),
	}
}

type NotificationRequest struct {
	TopicID string        `json:"topic_id"`
	Method  notify.Method `json:"method"`
	Config  notify.Config `json:"config"`
}

func (api *NotificationAPI) Create(w http.ResponseWriter, r *http.Request) {
	var req NotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.TopicID == "" {
		writeJSONError(w, http.StatusBadRequest, "missing topic_id")
		return
	}

	n := &notify.Notification{TopicID: req.TopicID, Method: req.Method, Config: req.Config}
	if err := api.Store.CreateNotification(r.Context(), n); err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (api *NotificationAPI) List(w http.ResponseWriter, r *http.Request) {
	notifications, err := api.Store.ListNotifications(r.Context())
	if err != nil {
		api.Logger.Error("Failed to list notifications", "err", err)
		writeJSONError(w, statusForError(err), "failed to list notifications")
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (api *NotificationAPI) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := api.Store.GetNotification(r.Context(), id)
	if err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (api *NotificationAPI) Update(w http.ResponseWriter, r *http.Request) {
	var req NotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.TopicID == "" {
		writeJSONError(w, http.StatusBadRequest, "missing topic_id")
		return
	}

	n := &notify.Notification{ID: chi.URLParam(r, "id"), TopicID: req.TopicID, Method: req.Method, Config: req.Config}
	if err := api.Store.UpdateNotification(r.Context(), n); err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (api *NotificationAPI) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := api.Store.DeleteNotification(r.Context(), id); err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
