package memory

import (
	"context"
	"sync"
)

type hintKey struct {
	userID     string
	questionID string
}

// HintCounter counts hints per (user, question) in memory.
type HintCounter struct {
	mu     sync.Mutex
	counts map[hintKey]int
}

func NewHintCounter() *HintCounter {
	return &HintCounter{counts: make(map[hintKey]int)}
}

func (c *HintCounter) Acquire(_ context.Context, userID, questionID string, limit int) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := hintKey{userID: userID, questionID: questionID}
	used := c.counts[key]
	if used >= limit {
		return used, false, nil
	}
	used++
	c.counts[key] = used
	return used, true, nil
}

func (c *HintCounter) Release(_ context.Context, userID, questionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := hintKey{userID: userID, questionID: questionID}
	if c.counts[key] <= 1 {
		delete(c.counts, key)
		return nil
	}
	c.counts[key]--
	return nil
}

func (c *HintCounter) Count(_ context.Context, userID, questionID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[hintKey{userID: userID, questionID: questionID}], nil
}

func (c *HintCounter) Reset(_ context.Context, userID, questionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, hintKey{userID: userID, questionID: questionID})
	return nil
}
