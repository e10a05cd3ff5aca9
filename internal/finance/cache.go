package finance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps redis based caching of match snapshots. Snapshots are
// derived values; a short TTL bounds staleness and a bump after every
// receipt or bill keeps readers close to the system of record.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func matchKey(poID int64) string {
	return fmt.Sprintf("finance:match:po:%d", poID)
}

// FetchMatch loads a cached snapshot or populates it using the loader.
func (c *Cache) FetchMatch(ctx context.Context, poID int64, loader func(context.Context) (ThreeWayMatchStatus, error)) (ThreeWayMatchStatus, error) {
	if loader == nil {
		return ThreeWayMatchStatus{}, errors.New("finance: cache loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	key := matchKey(poID)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var status ThreeWayMatchStatus
		if err := json.Unmarshal(payload, &status); err == nil {
			return status, nil
		}
		// Fall through on decode failure and rebuild.
	} else if err != redis.Nil {
		return ThreeWayMatchStatus{}, err
	}
	status, err := loader(ctx)
	if err != nil {
		return ThreeWayMatchStatus{}, err
	}
	raw, err := json.Marshal(status)
	if err != nil {
		return ThreeWayMatchStatus{}, err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return ThreeWayMatchStatus{}, err
	}
	return status, nil
}

// Invalidate drops the cached snapshot for a purchase order.
func (c *Cache) Invalidate(ctx context.Context, poID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, matchKey(poID)).Err()
}
