// Package dispatchservice assembles the dispatch service: HTTP surface,
// worker pool, and their shared lifecycle.
package dispatchservice

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"

	"github.com/tinywideclouds/go-dispatch-service/dispatchservice/config"
	"github.com/tinywideclouds/go-dispatch-service/internal/api"
	"github.com/tinywideclouds/go-dispatch-service/internal/pipeline"
	"github.com/tinywideclouds/go-dispatch-service/internal/queue"
	"github.com/tinywideclouds/go-dispatch-service/pkg/dispatch"
	"github.com/tinywideclouds/go-dispatch-service/pkg/notify"
)

type Wrapper struct {
	httpServer   *http.Server
	queueService *queue.Service
	logger       *slog.Logger
}

// New assembles the service.
func New(
	cfg *config.Config,
	store dispatch.TopicStore,
	transports map[notify.Method]dispatch.TransportFactory,
	backend queue.Backend,
	clock clockwork.Clock,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Dispatch pipeline
	dispatcher := pipeline.NewDispatcher(store, transports, cfg.RetryMax, cfg.SendTimeout, logger)

	// 2. Worker pool
	queueService := queue.NewService(
		queue.ServiceConfig{
			NumWorkers: cfg.NumDispatchWorkers,
			RetryMax:   cfg.RetryMax,
			Backoff:    cfg.RetryBackoff,
		},
		backend,
		dispatcher.Handle,
		clock,
		logger,
	)

	// 3. APIs
	dispatchAPI := api.NewDispatchAPI(store, queueService, logger)
	topicAPI := api.NewTopicAPI(store, logger)
	notificationAPI := api.NewNotificationAPI(store, logger)

	// 4. Routes
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/dispatcher", dispatchAPI.Dispatch)

		r.Post("/topics", topicAPI.Create)
		r.Get("/topics", topicAPI.List)
		r.Get("/topics/{id}", topicAPI.Get)
		r.Put("/topics/{id}", topicAPI.Update)
		r.Delete("/topics/{id}", topicAPI.Delete)

		r.Post("/notifications", notificationAPI.Create)
		r.Get("/notifications", notificationAPI.List)
		r.Get("/notifications/{id}", notificationAPI.Get)
		r.Put("/notifications/{id}", notificationAPI.Update)
		r.Delete("/notifications/{id}", notificationAPI.Delete)
	})

	return &Wrapper{
		httpServer: &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: r,
		},
		queueService: queueService,
		logger:       logger,
	}, nil
}

// Handler exposes the router, used by tests to drive the full HTTP surface
// without binding a port.
func (w *Wrapper) Handler() http.Handler {
	return w.httpServer.Handler
}

// Start launches the worker pool and then serves HTTP. It blocks until the
// server stops.
func (w *Wrapper) Start(_ context.Context) error {
	w.queueService.Start()
	w.logger.Info("Service is now ready.", "addr", w.httpServer.Addr)

	if err := w.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server first so no new jobs arrive, then drains
// the worker pool.
func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if err := w.httpServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.queueService.Stop()
	w.logger.Info("Service shutdown complete.")
	return finalErr
}
