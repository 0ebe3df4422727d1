package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRetryKey is the Redis list holding undelivered direct messages.
const DefaultRetryKey = "notify:message:retry"

// RetryPayload is a direct message waiting for redelivery.
type RetryPayload struct {
	Recipient string `json:"recipient"`
	Text      string `json:"text"`
	Attempts  int    `json:"attempts"`
}

// RetryStore persists undelivered messages between process restarts.
type RetryStore interface {
	Push(ctx context.Context, payload RetryPayload) error
	Pop(ctx context.Context) (*RetryPayload, error)
	Len(ctx context.Context) (int64, error)
}

// RedisRetryQueue is a FIFO retry store backed by a Redis list.
type RedisRetryQueue struct {
	client redis.UniversalClient
	key    string
}

// NewRedisRetryQueue constructs a retry queue on key, falling back to DefaultRetryKey.
func NewRedisRetryQueue(client redis.UniversalClient, key string) *RedisRetryQueue {
	if key == "" {
		key = DefaultRetryKey
	}
	return &RedisRetryQueue{client: client, key: key}
}

// Push appends a payload to the tail of the list.
func (q *RedisRetryQueue) Push(ctx context.Context, payload RetryPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode retry payload: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("failed to push retry payload: %w", err)
	}
	return nil
}

// Pop removes the head of the list. It returns nil when the list is empty.
func (q *RedisRetryQueue) Pop(ctx context.Context) (*RetryPayload, error) {
	data, err := q.client.LPop(ctx, q.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop retry payload: %w", err)
	}
	var payload RetryPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode retry payload: %w", err)
	}
	return &payload, nil
}

// Len reports the number of queued payloads.
func (q *RedisRetryQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read retry queue length: %w", err)
	}
	return n, nil
}
