package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// HintCounter counts hints per (user, question) with INCR so that every
// instance of the service shares the same limit.
// Keys look like: hints:{userID}:{questionID}
type HintCounter struct {
	client *redis.Client
	window time.Duration
}

// NewHintCounter keeps counters for window after the last hint; zero keeps them forever.
func NewHintCounter(client *redis.Client, window time.Duration) *HintCounter {
	return &HintCounter{client: client, window: window}
}

func (c *HintCounter) Acquire(ctx context.Context, userID, questionID string, limit int) (int, bool, error) {
	key := c.key(userID, questionID)
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	if c.window > 0 {
		pipe.Expire(ctx, key, c.window)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, false, fmt.Errorf("incr %s: %w", key, err)
	}
	used := int(incr.Val())
	if used > limit {
		if err := c.client.Decr(ctx, key).Err(); err != nil {
			return used - 1, false, fmt.Errorf("decr %s: %w", key, err)
		}
		return used - 1, false, nil
	}
	return used, true, nil
}

func (c *HintCounter) Release(ctx context.Context, userID, questionID string) error {
	key := c.key(userID, questionID)
	n, err := c.client.Decr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("decr %s: %w", key, err)
	}
	if n <= 0 {
		return c.client.Del(ctx, key).Err()
	}
	return nil
}

func (c *HintCounter) Count(ctx context.Context, userID, questionID string) (int, error) {
	n, err := c.client.Get(ctx, c.key(userID, questionID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get hint count: %w", err)
	}
	return n, nil
}

func (c *HintCounter) Reset(ctx context.Context, userID, questionID string) error {
	return c.client.Del(ctx, c.key(userID, questionID)).Err()
}

func (c *HintCounter) key(userID, questionID string) string {
	return "hints:" + userID + ":" + questionID
}
