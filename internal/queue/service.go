package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/tinywideclouds/go-dispatch-service/pkg/notify"
)

// ServiceConfig controls the worker pool and its retry policy.
type ServiceConfig struct {
	NumWorkers int
	// RetryMax is the total number of delivery attempts per job.
	RetryMax int
	// Backoff is the fixed delay before a failed job runs again.
	Backoff time.Duration
}

// Service pulls jobs from a backend and runs them through a handler with
// bounded retries. Transient failures are re-enqueued after a fixed
// backoff; permanent failures are dropped on the first attempt.
type Service struct {
	cfg     ServiceConfig
	backend Backend
	handler Handler
	clock   clockwork.Clock
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(cfg ServiceConfig, backend Backend, handler Handler, clock clockwork.Clock, logger *slog.Logger) *Service {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	return &Service{
		cfg:     cfg,
		backend: backend,
		handler: handler,
		clock:   clock,
		logger:  logger.With("component", "QueueService"),
	}
}

// Enqueue schedules a job to run as soon as a worker is free.
func (s *Service) Enqueue(ctx context.Context, payload []byte) (Job, error) {
	j := NewJob(payload, s.clock.Now())
	if err := s.backend.Push(ctx, j); err != nil {
		return Job{}, err
	}
	s.logger.Debug("Job enqueued", "job_id", j.ID)
	return j, nil
}

// Start launches the worker pool. It returns immediately; workers run
// until Stop is called.
func (s *Service) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for i := 0; i < s.cfg.NumWorkers; i++ {
		s.wg.Add(1)
		go func(worker int) {
			defer s.wg.Done()
			s.run(ctx, worker)
		}(i)
	}
	s.logger.Info("Queue service started", "num_workers", s.cfg.NumWorkers)
}

// Stop cancels all workers and waits for them to drain.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("Queue service stopped")
}

func (s *Service) run(ctx context.Context, worker int) {
	logger := s.logger.With("worker", worker)
	for {
		j, err := s.backend.Pull(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("Failed to pull job", "error", err)
			continue
		}
		s.execute(ctx, logger, j)
	}
}

func (s *Service) execute(ctx context.Context, logger *slog.Logger, j Job) {
	err := s.handler(ctx, j)
	if err == nil {
		logger.Debug("Job completed", "job_id", j.ID, "attempt", j.Attempt)
		return
	}

	if notify.Permanent(err) {
		logger.Error("Job failed permanently, dropping", "job_id", j.ID, "attempt", j.Attempt, "error", err)
		return
	}

	if j.Attempt >= s.cfg.RetryMax {
		logger.Error("Job failed, retries exhausted", "job_id", j.ID, "attempt", j.Attempt, "error", err)
		return
	}

	retry := Job{
		ID:      j.ID,
		Payload: j.Payload,
		Attempt: j.Attempt + 1,
		RunAt:   s.clock.Now().Add(s.cfg.Backoff),
	}
	if pushErr := s.backend.Push(ctx, retry); pushErr != nil {
		logger.Error("Failed to schedule retry", "job_id", j.ID, "error", pushErr)
		return
	}
	logger.Warn("Job failed, retry scheduled", "job_id", j.ID, "attempt", j.Attempt, "error", err)
}
