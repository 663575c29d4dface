// Package queue provides the asynchronous execution layer for dispatch
// tasks: a delayed-job backend, a worker pool, and the retry policy. The
// clock is injected so backoff timing is deterministic under test.
package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is one unit of work. Payload is opaque to the queue; Attempt starts at
// 1 and counts executions, not reschedules.
type Job struct {
	ID      string    `json:"id"`
	Payload []byte    `json:"payload"`
	Attempt int       `json:"attempt"`
	RunAt   time.Time `json:"run_at"`
}

// Backend stores jobs until they are due.
type Backend interface {
	// Push stores j for execution at j.RunAt.
	Push(ctx context.Context, j Job) error
	// Pull blocks until a job is due or ctx is done.
	Pull(ctx context.Context) (Job, error)
	Close() error
}

// Handler executes one job. A nil return completes the job; an error the
// service classifies via notify.Permanent decides between retry and drop.
type Handler func(ctx context.Context, j Job) error

// NewJob wraps a payload as a first-attempt job due immediately.
func NewJob(payload []byte, now time.Time) Job {
	return Job{
		ID:      uuid.NewString(),
		Payload: payload,
		Attempt: 1,
		RunAt:   now,
	}
}
