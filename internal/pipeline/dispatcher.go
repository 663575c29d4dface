package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-dispatch-service/internal/queue"
	"github.com/tinywideclouds/go-dispatch-service/pkg/dispatch"
	"github.com/tinywideclouds/go-dispatch-service/pkg/notify"
)

const actorDispatchWorker = "dispatch-worker"

// Dispatcher executes one dispatch job: resolve the bindings, validate each
// config, and run the message through the method's transport. Every attempt
// leaves one audit log row per binding.
type Dispatcher struct {
	store       dispatch.TopicReader
	transports  map[notify.Method]dispatch.TransportFactory
	retryMax    int
	sendTimeout time.Duration
	logger      *slog.Logger
}

func NewDispatcher(
	store dispatch.TopicReader,
	transports map[notify.Method]dispatch.TransportFactory,
	retryMax int,
	sendTimeout time.Duration,
	logger *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		store:       store,
		transports:  transports,
		retryMax:    retryMax,
		sendTimeout: sendTimeout,
		logger:      logger.With("component", "Dispatcher"),
	}
}

// Handle is the queue.Handler for dispatch jobs. A nil return completes the
// job; a permanent error drops it; anything else is retried by the queue.
func (d *Dispatcher) Handle(ctx context.Context, j queue.Job) error {
	job, err := DecodeDispatchJob(j.Payload)
	if err != nil {
		// Undecodable payloads can never succeed; drop instead of retry.
		d.logger.Error("Malformed dispatch payload, dropping", "job_id", j.ID, "error", err)
		return nil
	}

	logger := d.logger.With("topic_id", job.TopicID, "job_id", j.ID, "attempt", j.Attempt)

	bindings, err := d.resolve(ctx, job)
	if err != nil {
		logger.Error("Failed to resolve bindings", "error", err)
		return err
	}
	if len(bindings) == 0 {
		logger.Info("Topic has no channel bindings; nothing to dispatch")
		d.appendLog(ctx, logger, job, "", j.Attempt, notify.OutcomeSkipped, nil)
		return nil
	}

	var firstErr error
	for _, binding := range bindings {
		if err = d.dispatchOne(ctx, logger, job, j.Attempt, binding); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (d *Dispatcher) resolve(ctx context.Context, job DispatchJob) ([]notify.Notification, error) {
	if job.NotificationID != "" {
		n, err := d.store.GetNotification(ctx, job.NotificationID)
		if err != nil {
			return nil, err
		}
		return []notify.Notification{*n}, nil
	}
	return d.store.NotificationsForTopic(ctx, job.TopicID)
}

func (d *Dispatcher) dispatchOne(ctx context.Context, logger *slog.Logger, job DispatchJob, attempt int, binding notify.Notification) error {
	logger = logger.With("notification_id", binding.ID, "method", binding.Method)

	err := d.send(ctx, job.Message, binding)
	outcome := d.classify(err, attempt)
	d.appendLog(ctx, logger, job, binding.ID, attempt, outcome, err)

	switch outcome {
	case notify.OutcomeDelivered:
		logger.Info("Notification sent")
	case notify.OutcomeRetrying:
		logger.Warn("Delivery failed, will retry", "error", err)
	default:
		logger.Error("Delivery failed permanently", "error", err)
	}
	return err
}

func (d *Dispatcher) send(ctx context.Context, message string, binding notify.Notification) error {
	cfg, err := notify.ValidateConfig(binding.Method, binding.Config)
	if err != nil {
		return err
	}

	factory, ok := d.transports[binding.Method]
	if !ok {
		return &notify.UnsupportedMethodError{Method: string(binding.Method)}
	}
	transport := factory()

	if err = transport.Connect(ctx); err != nil {
		return err
	}
	defer func() { _ = transport.Disconnect() }()

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	return transport.Send(sendCtx, message, *cfg)
}

func (d *Dispatcher) classify(err error, attempt int) string {
	switch {
	case err == nil:
		return notify.OutcomeDelivered
	case notify.Permanent(err):
		return notify.OutcomeFailed
	case attempt >= d.retryMax:
		return notify.OutcomeFailed
	default:
		return notify.OutcomeRetrying
	}
}

func (d *Dispatcher) appendLog(ctx context.Context, logger *slog.Logger, job DispatchJob, notificationID string, attempt int, outcome string, dispatchErr error) {
	entry := notify.NotificationLog{
		Actor:          actorDispatchWorker,
		NotificationID: notificationID,
		TopicID:        job.TopicID,
		Message:        job.Message,
		Outcome:        outcome,
		Attempt:        attempt,
	}
	if dispatchErr != nil {
		entry.Error = dispatchErr.Error()
	}
	// The audit write must not mask the dispatch result.
	if err := d.store.AppendLog(ctx, entry); err != nil {
		logger.Warn("Failed to append dispatch log", "error", err)
	}
}
