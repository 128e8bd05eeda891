package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestPool() *WorkerPool {
	p := NewWorkerPool(2, 16)
	p.Backoff = time.Millisecond
	return p
}

func TestWorkerPool_RunsTask(t *testing.T) {
	p := newTestPool()
	p.Start()
	defer p.Stop()

	done := make(chan struct{})
	ok := p.AddTask(Task{Name: "ok", Run: func(ctx context.Context) error {
		close(done)
		return nil
	}})
	assert.True(t, ok)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
}

func TestWorkerPool_RetriesUntilSuccess(t *testing.T) {
	p := newTestPool()
	p.Start()
	defer p.Stop()

	var calls int32
	done := make(chan struct{})
	p.AddTask(Task{Name: "flaky", Run: func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task was not retried")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWorkerPool_GivesUpAfterMaxRetry(t *testing.T) {
	p := newTestPool()
	p.MaxRetry = 2
	p.Start()

	var calls int32
	p.AddTask(Task{Name: "broken", Run: func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("permanent")
	}})

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 3 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	p.Stop()
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWorkerPool_AddTaskQueueFull(t *testing.T) {
	p := NewWorkerPool(1, 2)
	noop := Task{Name: "noop", Run: func(ctx context.Context) error { return nil }}

	assert.True(t, p.AddTask(noop))
	assert.True(t, p.AddTask(noop))
	assert.False(t, p.AddTask(noop))
}
