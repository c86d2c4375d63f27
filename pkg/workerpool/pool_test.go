package workerpool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsTasksAndReportsResults(t *testing.T) {
	var mu sync.Mutex
	var results []*Result

	cfg := DefaultConfig()
	cfg.OnResult = func(r *Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	pool, err := New(cfg, func(ctx context.Context, task *Task) *Result {
		if task.Payload == "fail" {
			return &Result{TaskID: task.ID, Error: errors.New("boom")}
		}
		return &Result{TaskID: task.ID, Success: true, Data: task.Payload}
	}, nil)
	require.NoError(t, err)
	pool.Start()

	require.NoError(t, pool.Submit(&Task{ID: "a", Payload: "ok"}))
	require.NoError(t, pool.Submit(&Task{ID: "b", Payload: "fail"}))
	require.NoError(t, pool.Stop())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.Equal(t, "ok", results[0].Data)
	assert.False(t, results[1].Success)

	stats := pool.Stats()
	assert.Equal(t, int64(2), stats.TasksSubmitted)
	assert.Equal(t, int64(1), stats.TasksCompleted)
	assert.Equal(t, int64(1), stats.TasksFailed)
	assert.Equal(t, int64(0), stats.TasksRetried)

	assert.ErrorIs(t, pool.Submit(&Task{ID: "c"}), ErrShuttingDown)
}

func TestPool_Retries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRetries = 2
	cfg.RetryDelay = time.Millisecond

	attempts := 0
	pool, err := New(cfg, func(ctx context.Context, task *Task) *Result {
		attempts++
		return &Result{TaskID: task.ID, Success: attempts == 3}
	}, nil)
	require.NoError(t, err)
	pool.Start()

	require.NoError(t, pool.Submit(&Task{ID: "r"}))
	require.NoError(t, pool.Stop())

	assert.Equal(t, 3, attempts)
	assert.Equal(t, int64(2), pool.Stats().TasksRetried)
	assert.Equal(t, int64(1), pool.Stats().TasksCompleted)
}

func TestPool_RecoversPanics(t *testing.T) {
	var got *Result
	cfg := DefaultConfig()
	cfg.OnResult = func(r *Result) { got = r }

	pool, err := New(cfg, func(ctx context.Context, task *Task) *Result {
		panic("bad task")
	}, nil)
	require.NoError(t, err)
	pool.Start()

	require.NoError(t, pool.Submit(&Task{ID: "p"}))
	require.NoError(t, pool.Stop())

	require.NotNil(t, got)
	assert.False(t, got.Success)
	assert.Contains(t, got.Error.Error(), "panicked")
}

func TestPool_QueueFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueSize = 1

	pool, err := New(cfg, func(ctx context.Context, task *Task) *Result { return nil }, nil)
	require.NoError(t, err)

	require.NoError(t, pool.Submit(&Task{ID: "1"}))
	assert.ErrorIs(t, pool.Submit(&Task{ID: "2"}), ErrQueueFull)
	assert.False(t, pool.IsHealthy())

	pool.Start()
	require.NoError(t, pool.Stop())
}

func TestNew_RequiresWorkerFunc(t *testing.T) {
	_, err := New(DefaultConfig(), nil, nil)
	assert.Error(t, err)
}
