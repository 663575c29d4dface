package queue

import (
	"container/heap"
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
)

// MemoryBackend holds delayed jobs in a min-heap ordered by due time. It is
// the default backend for single-node deployments and for tests.
type MemoryBackend struct {
	clock clockwork.Clock

	mu   sync.Mutex
	jobs jobHeap
	// wake nudges a blocked Pull when a job lands that may be due sooner
	// than whatever the puller is currently waiting for.
	wake chan struct{}
}

func NewMemoryBackend(clock clockwork.Clock) *MemoryBackend {
	return &MemoryBackend{
		clock: clock,
		wake:  make(chan struct{}, 1),
	}
}

func (b *MemoryBackend) Push(_ context.Context, j Job) error {
	b.mu.Lock()
	heap.Push(&b.jobs, j)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
	return nil
}

func (b *MemoryBackend) Pull(ctx context.Context) (Job, error) {
	for {
		b.mu.Lock()
		if b.jobs.Len() > 0 {
			next := b.jobs[0]
			now := b.clock.Now()
			if !next.RunAt.After(now) {
				j := heap.Pop(&b.jobs).(Job)
				b.mu.Unlock()
				return j, nil
			}
			wait := next.RunAt.Sub(now)
			b.mu.Unlock()
			select {
			case <-ctx.Done():
				return Job{}, ctx.Err()
			case <-b.clock.After(wait):
			case <-b.wake:
			}
			continue
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return Job{}, ctx.Err()
		case <-b.wake:
		}
	}
}

func (b *MemoryBackend) Close() error { return nil }

// jobHeap is a min-heap by RunAt.
type jobHeap []Job

func (h jobHeap) Len() int            { return len(h) }
func (h jobHeap) Less(i, j int) bool  { return h[i].RunAt.Before(h[j].RunAt) }
func (h jobHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *jobHeap) Push(x any)         { *h = append(*h, x.(Job)) }
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	j := old[n-1]
	*h = old[:n-1]
	return j
}
