package outline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pendingKeyPrefix = "outline:pending:" // Pending outline per deck: outline:pending:{deck_id}
	pendingIndexKey  = "outline:pending:index"
)

// Cache is the bounded, time-limited store of pending outlines. Entries carry
// a fixed TTL; when the entry count exceeds the bound the oldest is evicted
// first. Double-execution protection comes from Delete being a single atomic
// DEL: whoever deletes the key wins the execute.
type Cache struct {
	client     *redis.Client
	ttl        time.Duration
	maxEntries int
}

func NewCache(client *redis.Client, ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = 500
	}
	return &Cache{client: client, ttl: ttl, maxEntries: maxEntries}
}

func (c *Cache) key(deckID string) string {
	return fmt.Sprintf("%s%s", pendingKeyPrefix, deckID)
}

// Put stores the pending outline for a deck, evicting the oldest entries when
// the cache is over its bound.
func (c *Cache) Put(ctx context.Context, deckID string, o *Outline) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("marshal outline: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, c.key(deckID), data, c.ttl)
	pipe.ZAdd(ctx, pendingIndexKey, redis.Z{Score: float64(time.Now().UnixNano()), Member: deckID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store pending outline: %w", err)
	}

	return c.evictOverflow(ctx)
}

func (c *Cache) evictOverflow(ctx context.Context) error {
	n, err := c.client.ZCard(ctx, pendingIndexKey).Result()
	if err != nil {
		return fmt.Errorf("index size: %w", err)
	}
	if n <= int64(c.maxEntries) {
		return nil
	}

	oldest, err := c.client.ZRange(ctx, pendingIndexKey, 0, n-int64(c.maxEntries)-1).Result()
	if err != nil {
		return fmt.Errorf("index range: %w", err)
	}

	pipe := c.client.Pipeline()
	for _, deckID := range oldest {
		pipe.Del(ctx, c.key(deckID))
		pipe.ZRem(ctx, pendingIndexKey, deckID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("evict oldest: %w", err)
	}
	return nil
}

// Get loads the pending outline for a deck, or ErrNoPending.
func (c *Cache) Get(ctx context.Context, deckID string) (*Outline, error) {
	data, err := c.client.Get(ctx, c.key(deckID)).Result()
	if err == redis.Nil {
		// Entry expired; drop the stale index member too.
		c.client.ZRem(ctx, pendingIndexKey, deckID)
		return nil, ErrNoPending
	}
	if err != nil {
		return nil, fmt.Errorf("load pending outline: %w", err)
	}

	var o Outline
	if err := json.Unmarshal([]byte(data), &o); err != nil {
		return nil, fmt.Errorf("unmarshal pending outline: %w", err)
	}
	return &o, nil
}

// Delete removes the pending entry and reports whether this caller removed
// it. Under concurrent approvals exactly one Delete returns true.
func (c *Cache) Delete(ctx context.Context, deckID string) (bool, error) {
	n, err := c.client.Del(ctx, c.key(deckID)).Result()
	if err != nil {
		return false, fmt.Errorf("delete pending outline: %w", err)
	}
	c.client.ZRem(ctx, pendingIndexKey, deckID)
	return n > 0, nil
}
