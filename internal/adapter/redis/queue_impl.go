package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/crawl-tracker/internal/repository"
)

const defaultQueueKey = "crawler:recrawl"

// QueueRepoImpl provides a concrete implementation for the QueueRepository interface using Redis Lists.
type QueueRepoImpl struct {
	client     redis.UniversalClient
	key        string
	popTimeout time.Duration
}

// NewQueueRepo creates a new instance of QueueRepoImpl. A positive popTimeout
// makes Pop block for up to that long waiting for an item.
func NewQueueRepo(client redis.UniversalClient, key string, popTimeout time.Duration) *QueueRepoImpl {
	if key == "" {
		key = defaultQueueKey
	}
	return &QueueRepoImpl{client: client, key: key, popTimeout: popTimeout}
}

// Push adds a URL to the left side of the Redis list (acting as a queue).
func (r *QueueRepoImpl) Push(ctx context.Context, url string) error {
	return r.client.LPush(ctx, r.key, url).Err()
}

// Pop removes and returns a URL from the right side of the Redis list.
func (r *QueueRepoImpl) Pop(ctx context.Context) (string, error) {
	if r.popTimeout <= 0 {
		url, err := r.client.RPop(ctx, r.key).Result()
		if errors.Is(err, redis.Nil) {
			return "", repository.ErrQueueEmpty
		}
		return url, err
	}

	// BRPOP replies with [key, value].
	res, err := r.client.BRPop(ctx, r.popTimeout, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", repository.ErrQueueEmpty
	}
	if err != nil {
		return "", err
	}
	return res[1], nil
}

// Size returns the current number of items in the queue.
func (r *QueueRepoImpl) Size(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.key).Result()
}
