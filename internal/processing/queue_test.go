package processing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqr-backend/internal/shared/telemetry"
)

type funcProcessor func(ctx context.Context, documentID string) error

func (f funcProcessor) Process(ctx context.Context, documentID string) error {
	return f(ctx, documentID)
}

func TestQueueRunsJobs(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]string{}
	q, err := NewQueue(QueueOptions{Workers: 2, Capacity: 10}, funcProcessor(func(ctx context.Context, id string) error {
		mu.Lock()
		defer mu.Unlock()
		seen[id] = telemetry.RequestIDFromContext(ctx)
		_, hasDeadline := ctx.Deadline()
		if !hasDeadline {
			seen[id] = "no-deadline"
		}
		return nil
	}))
	require.NoError(t, err)

	ctx := telemetry.WithRequestID(context.Background(), "req-42")
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, id))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "req-42", seen["a"])
	mu.Unlock()
	require.NoError(t, q.Shutdown(context.Background()))
}

func TestQueueJobOutlivesRequestContext(t *testing.T) {
	done := make(chan error, 1)
	q, err := NewQueue(QueueOptions{Workers: 1, Capacity: 1}, funcProcessor(func(ctx context.Context, id string) error {
		done <- ctx.Err()
		return nil
	}))
	require.NoError(t, err)
	defer q.Shutdown(context.Background())

	reqCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Enqueue(reqCtx, "doc"))
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestQueueRejectsWhenFull(t *testing.T) {
	gate := make(chan struct{})
	q, err := NewQueue(QueueOptions{Workers: 1, Capacity: 1}, funcProcessor(func(ctx context.Context, id string) error {
		<-gate
		return nil
	}))
	require.NoError(t, err)

	accepted := 0
	require.Eventually(t, func() bool {
		err := q.Enqueue(context.Background(), "doc")
		if err == nil {
			accepted++
			return false
		}
		return errors.Is(err, ErrQueueFull)
	}, 2*time.Second, 5*time.Millisecond)

	// one running, one waiting on the pool, one buffered
	assert.LessOrEqual(t, accepted, 3)
	assert.GreaterOrEqual(t, accepted, 1)

	close(gate)
	require.NoError(t, q.Shutdown(context.Background()))
}

func TestQueueClosedAfterShutdown(t *testing.T) {
	q, err := NewQueue(QueueOptions{}, funcProcessor(func(ctx context.Context, id string) error { return nil }))
	require.NoError(t, err)
	assert.Equal(t, DefaultCapacity, q.Capacity())

	require.NoError(t, q.Shutdown(context.Background()))
	assert.ErrorIs(t, q.Enqueue(context.Background(), "late"), ErrQueueClosed)
	require.NoError(t, q.Shutdown(context.Background()))
}

func TestQueueShutdownWaitsForRunningJobs(t *testing.T) {
	started := make(chan struct{})
	var finished atomic.Bool
	q, err := NewQueue(QueueOptions{Workers: 1, Capacity: 4}, funcProcessor(func(ctx context.Context, id string) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return nil
	}))
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(context.Background(), "doc"))
	<-started

	require.NoError(t, q.Shutdown(context.Background()))
	assert.True(t, finished.Load())
}

func TestQueueShutdownTimesOut(t *testing.T) {
	started := make(chan struct{})
	gate := make(chan struct{})
	defer close(gate)
	q, err := NewQueue(QueueOptions{Workers: 1, Capacity: 4}, funcProcessor(func(ctx context.Context, id string) error {
		close(started)
		<-gate
		return nil
	}))
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(context.Background(), "doc"))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Shutdown(ctx), context.DeadlineExceeded)
}

func TestQueueSurvivesProcessorPanic(t *testing.T) {
	var calls atomic.Int32
	q, err := NewQueue(QueueOptions{Workers: 1, Capacity: 4}, funcProcessor(func(ctx context.Context, id string) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return nil
	}))
	require.NoError(t, err)

	require.NoError(t, q.Enqueue(context.Background(), "first"))
	require.NoError(t, q.Enqueue(context.Background(), "second"))
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, q.Shutdown(context.Background()))
}

func TestNewQueueRequiresProcessor(t *testing.T) {
	_, err := NewQueue(QueueOptions{}, nil)
	assert.Error(t, err)
}
