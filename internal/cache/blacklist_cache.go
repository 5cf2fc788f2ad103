package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const blacklistKeyPrefix = "gatekeeper:blacklist:"

// BlacklistCache is the Redis-backed accelerator for membership checks.
// It is never the source of truth: writers delete keys instead of
// overwriting them, and a flushed namespace simply repopulates from the
// database on the next check.
type BlacklistCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewBlacklistCache(client *redis.Client, ttl time.Duration) *BlacklistCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &BlacklistCache{client: client, ttl: ttl}
}

// Lookup returns the cached verdict for the IP and whether a key existed.
func (c *BlacklistCache) Lookup(ctx context.Context, ip string) (bool, bool, error) {
	value, err := c.client.Get(ctx, blacklistKeyPrefix+ip).Result()
	if errors.Is(err, redis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return value == "1", true, nil
}

// Store caches a verdict with the fixed expiry.
func (c *BlacklistCache) Store(ctx context.Context, ip string, blacklisted bool) error {
	value := "0"
	if blacklisted {
		value = "1"
	}
	return c.client.Set(ctx, blacklistKeyPrefix+ip, value, c.ttl).Err()
}

// Invalidate deletes the key for the IP so the next check repopulates
// from the ground truth. Always a delete, never a write-back.
func (c *BlacklistCache) Invalidate(ctx context.Context, ip string) error {
	return c.client.Del(ctx, blacklistKeyPrefix+ip).Err()
}

// FlushAll clears the whole blacklist key namespace. Coarser than per-key
// invalidation; used after bulk sweeps where per-key deletes would be
// wasteful.
func (c *BlacklistCache) FlushAll(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, blacklistKeyPrefix+"*", 0).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 500 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}

	if len(keys) > 0 {
		return c.client.Del(ctx, keys...).Err()
	}
	return nil
}
