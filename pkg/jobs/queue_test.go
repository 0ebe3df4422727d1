package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestQueueProcessesJobs(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []int
		wg   sync.WaitGroup
	)
	wg.Add(3)
	q := NewQueue[int]("test", func(ctx context.Context, job Job[int]) error {
		mu.Lock()
		seen = append(seen, job.Payload)
		mu.Unlock()
		wg.Done()
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for i := 1; i <= 3; i++ {
		require.NoError(t, q.Enqueue(Job[int]{ID: "job", Payload: i}))
	}
	waitOrFail(t, &wg)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []int{1, 2, 3}, seen)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue[string]("retry", func(ctx context.Context, job Job[string]) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 5, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.TryEnqueue(Job[string]{ID: "j1", Payload: "x"}))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQueueTryEnqueueFull(t *testing.T) {
	block := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue[int]("full", func(ctx context.Context, job Job[int]) error {
		started <- struct{}{}
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()
	defer close(block)

	require.NoError(t, q.TryEnqueue(Job[int]{Payload: 1}))
	<-started
	require.NoError(t, q.TryEnqueue(Job[int]{Payload: 2}))

	err := q.TryEnqueue(Job[int]{Payload: 3})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue[int]("idle", func(ctx context.Context, job Job[int]) error { return nil }, QueueConfig{})
	assert.Error(t, q.TryEnqueue(Job[int]{Payload: 1}))
	q.Stop()
}

func TestQueueStopRunsBufferedJobs(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var (
		once sync.Once
		mu   sync.Mutex
		seen []int
	)
	q := NewQueue[int]("drain", func(ctx context.Context, job Job[int]) error {
		if job.Payload == 0 {
			once.Do(func() { close(started) })
			<-release
		}
		mu.Lock()
		seen = append(seen, job.Payload)
		mu.Unlock()
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 8})
	q.Start(context.Background())

	require.NoError(t, q.TryEnqueue(Job[int]{Payload: 0}))
	<-started
	for i := 1; i <= 5; i++ {
		require.NoError(t, q.TryEnqueue(Job[int]{Payload: i}))
	}

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()
	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}

	mu.Lock()
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5}, seen)
	mu.Unlock()
	assert.ErrorIs(t, q.TryEnqueue(Job[int]{Payload: 6}), ErrQueueStopped)
	assert.ErrorIs(t, q.Enqueue(Job[int]{Payload: 7}), ErrQueueStopped)
}

func TestQueueRejectsOnceContextIsDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q := NewQueue[int]("cancelled", func(ctx context.Context, job Job[int]) error { return nil }, QueueConfig{})
	q.Start(ctx)
	defer q.Stop()

	for i := 0; i < 10; i++ {
		assert.ErrorIs(t, q.TryEnqueue(Job[int]{Payload: i}), ErrQueueStopped)
	}
}

func TestQueueStopRunsPendingRetryOnce(t *testing.T) {
	var attempts int32
	failed := make(chan struct{})
	q := NewQueue[string]("pending", func(ctx context.Context, job Job[string]) error {
		if atomic.AddInt32(&attempts, 1) == 1 {
			close(failed)
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 3, RetryDelay: time.Hour})
	q.Start(context.Background())

	require.NoError(t, q.TryEnqueue(Job[string]{ID: "j1"}))
	<-failed
	q.Stop()
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for jobs")
	}
}
