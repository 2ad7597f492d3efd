// AngelaMos | 2026
// cache.go

package status

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/basementlabs/memberd/internal/core"
)

// Cache memoizes paid-within-period cohort results. The key is exactly the
// (start, end) pair: two queries for the same interval hit the same entry,
// any other interval misses.
type Cache interface {
	Get(ctx context.Context, start, end time.Time) ([]string, bool, error)
	Set(ctx context.Context, start, end time.Time, memberIDs []string) error
}

const paidCohortTTL = time.Hour

type redisCache struct {
	rdb *core.Redis
}

func NewRedisCache(rdb *core.Redis) Cache {
	return &redisCache{rdb: rdb}
}

func (c *redisCache) Get(
	ctx context.Context,
	start, end time.Time,
) ([]string, bool, error) {
	raw, err := c.rdb.Client.Get(ctx, cohortKey(start, end)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cohort cache get: %w", err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, false, fmt.Errorf("cohort cache decode: %w", err)
	}

	return ids, true, nil
}

func (c *redisCache) Set(
	ctx context.Context,
	start, end time.Time,
	memberIDs []string,
) error {
	raw, err := json.Marshal(memberIDs)
	if err != nil {
		return fmt.Errorf("cohort cache encode: %w", err)
	}

	err = c.rdb.Client.Set(ctx, cohortKey(start, end), raw, paidCohortTTL).Err()
	if err != nil {
		return fmt.Errorf("cohort cache set: %w", err)
	}

	return nil
}

func cohortKey(start, end time.Time) string {
	return fmt.Sprintf(
		"cohort:paid:%s:%s",
		start.Format(time.RFC3339),
		end.Format(time.RFC3339),
	)
}

// memoryCache backs tests and single-node deployments without redis.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string][]string
}

func NewMemoryCache() Cache {
	return &memoryCache{entries: make(map[string][]string)}
}

func (c *memoryCache) Get(
	_ context.Context,
	start, end time.Time,
) ([]string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids, ok := c.entries[cohortKey(start, end)]
	return ids, ok, nil
}

func (c *memoryCache) Set(
	_ context.Context,
	start, end time.Time,
	memberIDs []string,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cohortKey(start, end)] = memberIDs
	return nil
}
