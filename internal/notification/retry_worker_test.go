package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWorkerRunOnce(t *testing.T) {
	store := &memoryRetryStore{items: []RetryPayload{
		{Recipient: "111", Text: "one", Attempts: 1},
		{Recipient: "222", Text: "two", Attempts: 3},
		{Recipient: "333", Text: "three", Attempts: 1},
	}}
	sender := &messageSenderStub{fail: map[string]error{"222": errors.New("still down")}}
	metrics := &outcomeStub{}
	w := NewRetryWorker(store, sender, metrics, nil, RetryWorkerConfig{})

	delivered := w.RunOnce(context.Background())
	assert.Equal(t, 2, delivered)
	assert.Equal(t, []sentMessage{{Recipient: "111", Text: "one"}, {Recipient: "333", Text: "three"}}, sender.messages())

	left := store.snapshot()
	require.Len(t, left, 1)
	assert.Equal(t, "222", left[0].Recipient)
	assert.Equal(t, 4, left[0].Attempts)
	assert.Equal(t, int64(1), metrics.depth)
}

func TestRetryWorkerRespectsBatchSize(t *testing.T) {
	store := &memoryRetryStore{}
	for i := 0; i < 5; i++ {
		store.items = append(store.items, RetryPayload{Recipient: "111", Text: "msg"})
	}
	sender := &messageSenderStub{}
	w := NewRetryWorker(store, sender, nil, nil, RetryWorkerConfig{BatchSize: 2})

	assert.Equal(t, 2, w.RunOnce(context.Background()))
	assert.Len(t, store.snapshot(), 3)
}

func TestRetryWorkerEmptyStore(t *testing.T) {
	w := NewRetryWorker(&memoryRetryStore{}, &messageSenderStub{}, nil, nil, RetryWorkerConfig{})
	assert.Zero(t, w.RunOnce(context.Background()))
}

func TestRetryWorkerStartStop(t *testing.T) {
	store := &memoryRetryStore{items: []RetryPayload{{Recipient: "111", Text: "queued"}}}
	sender := &messageSenderStub{}
	w := NewRetryWorker(store, sender, nil, nil, RetryWorkerConfig{Interval: 10 * time.Millisecond})

	w.Start(context.Background())
	assert.Eventually(t, func() bool { return len(sender.messages()) == 1 }, time.Second, 5*time.Millisecond)
	w.Stop()
	w.Stop()
	assert.Empty(t, store.snapshot())
}

func TestNewRedisRetryQueueDefaultsKey(t *testing.T) {
	assert.Equal(t, DefaultRetryKey, NewRedisRetryQueue(nil, "").key)
	assert.Equal(t, "custom", NewRedisRetryQueue(nil, "custom").key)
}
