package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tinywideclouds/go-dispatch-service/pkg/dispatch"
	"github.com/tinywideclouds/go-dispatch-service/pkg/notify"
)

// TopicAPI is the CRUD surface for topics.
type TopicAPI struct {
	Store  dispatch.TopicStore
	Logger *slog.Logger
}

func NewTopicAPI(store dispatch.TopicStore, logger *slog.Logger) *TopicAPI {
	return &TopicAPI{
		Store:  store,
		Logger: logger.With("component", "TopicAPI"),
	}
}

type TopicRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (api *TopicAPI) Create(w http.ResponseWriter, r *http.Request) {
	var req TopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == "" {
		writeJSONError(w, http.StatusBadRequest, "missing name")
		return
	}

	topic := &notify.Topic{Name: req.Name, Description: req.Description}
	if err := api.Store.CreateTopic(r.Context(), topic); err != nil {
		api.Logger.Error("Failed to create topic", "err", err)
		writeJSONError(w, statusForError(err), "failed to create topic")
		return
	}
	writeJSON(w, http.StatusCreated, topic)
}

func (api *TopicAPI) List(w http.ResponseWriter, r *http.Request) {
	topics, err := api.Store.ListTopics(r.Context())
	if err != nil {
		api.Logger.Error("Failed to list topics", "err", err)
		writeJSONError(w, statusForError(err), "failed to list topics")
		return
	}
	writeJSON(w, http.StatusOK, topics)
}

func (api *TopicAPI) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	topic, err := api.Store.GetTopic(r.Context(), id)
	if err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, topic)
}

func (api *TopicAPI) Update(w http.ResponseWriter, r *http.Request) {
	var req TopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Name == "" {
		writeJSONError(w, http.StatusBadRequest, "missing name")
		return
	}

	topic := &notify.Topic{ID: chi.URLParam(r, "id"), Name: req.Name, Description: req.Description}
	if err := api.Store.UpdateTopic(r.Context(), topic); err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, topic)
}

func (api *TopicAPI) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := api.Store.DeleteTopic(r.Context(), id); err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
