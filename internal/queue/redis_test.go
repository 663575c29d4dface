//go:build integration

package queue_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-dispatch-service/internal/queue"
)

func setupRedisBackend(t *testing.T) *queue.RedisBackend {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping redis backend test")
	}

	backend, err := queue.NewRedisBackend(addr, "", 0, "dispatch:test:"+t.Name(), clockwork.NewRealClock())
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

func TestRedisBackend_Integration(t *testing.T) {
	backend := setupRedisBackend(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	t.Run("Push and Pull round trip", func(t *testing.T) {
		pushed := queue.NewJob([]byte(`{"topic_id":"t1"}`), time.Now())
		require.NoError(t, backend.Push(ctx, pushed))

		got, err := backend.Pull(ctx)
		require.NoError(t, err)
		assert.Equal(t, pushed.ID, got.ID)
		assert.Equal(t, pushed.Payload, got.Payload)
		assert.Equal(t, 1, got.Attempt)
	})

	t.Run("Delayed job is not delivered early", func(t *testing.T) {
		delayed := queue.NewJob([]byte("later"), time.Now().Add(2*time.Second))
		require.NoError(t, backend.Push(ctx, delayed))

		earlyCtx, earlyCancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer earlyCancel()
		_, err := backend.Pull(earlyCtx)
		require.ErrorIs(t, err, context.DeadlineExceeded)

		got, err := backend.Pull(ctx)
		require.NoError(t, err)
		assert.Equal(t, delayed.ID, got.ID)
	})
}
