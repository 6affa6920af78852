// internal/domain/cart/cache.go
package cart

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("cache miss")
	// ErrStaleCount means the cart changed after the count was computed
	ErrStaleCount = errors.New("cart changed while counting")
)

// CountCache caches the badge count of each owner's cart.
//
// Every write to a cart advances the owner's version through Delete. A count computed
// from the store is only kept if the version read before computing it is still current.
type CountCache interface {
	Get(ctx context.Context, ownerID uint) (int, error)
	Version(ctx context.Context, ownerID uint) (int64, error)
	SetIfVersion(ctx context.Context, ownerID uint, count int, version int64) error
	Delete(ctx context.Context, ownerID uint) error
}

// RedisCountCache stores counts as plain integers with a jittered TTL
type RedisCountCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

// NewRedisCountCache creates a count cache. A non-positive ttl falls back to 15 minutes.
func NewRedisCountCache(client *redis.Client, ttl time.Duration) *RedisCountCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisCountCache{client: client, baseTTL: ttl}
}

func (c *RedisCountCache) Get(ctx context.Context, ownerID uint) (int, error) {
	n, err := c.client.Get(ctx, countKey(ownerID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, ErrCacheMiss
	}
	if err != nil {
		return 0, fmt.Errorf("redis get failed: %w", err)
	}
	return n, nil
}

// Version returns the owner's cart version, 0 when none was recorded
func (c *RedisCountCache) Version(ctx context.Context, ownerID uint) (int64, error) {
	v, err := c.client.Get(ctx, versionKey(ownerID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get failed: %w", err)
	}
	return v, nil
}

// SetIfVersion writes count under WATCH on the version key, so a Delete that lands
// between the check and the write aborts the transaction.
func (c *RedisCountCache) SetIfVersion(ctx context.Context, ownerID uint, count int, version int64) error {
	vkey := versionKey(ownerID)

	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, vkey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return ErrStaleCount
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, countKey(ownerID), count, c.ttl())
			return nil
		})
		return err
	}, vkey)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrStaleCount), errors.Is(err, redis.TxFailedErr):
		return ErrStaleCount
	default:
		return fmt.Errorf("redis set failed: %w", err)
	}
}

// Delete drops the cached count and advances the version in one transaction
func (c *RedisCountCache) Delete(ctx context.Context, ownerID uint) error {
	vkey := versionKey(ownerID)

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, countKey(ownerID))
	pipe.Incr(ctx, vkey)
	pipe.Expire(ctx, vkey, 2*c.baseTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// ttl spreads expiries over an extra quarter of the base TTL
func (c *RedisCountCache) ttl() time.Duration {
	jitter := time.Duration(rand.Int63n(int64(c.baseTTL/4) + 1))
	return c.baseTTL + jitter
}

// Both keys share a hash tag so the transaction stays on one cluster slot
func countKey(ownerID uint) string {
	return "cart:count:{" + strconv.FormatUint(uint64(ownerID), 10) + "}"
}

func versionKey(ownerID uint) string {
	return countKey(ownerID) + ":version"
}

type nopCountCache struct{}

func (nopCountCache) Get(context.Context, uint) (int, error)               { return 0, ErrCacheMiss }
func (nopCountCache) Version(context.Context, uint) (int64, error)         { return 0, nil }
func (nopCountCache) SetIfVersion(context.Context, uint, int, int64) error { return nil }
func (nopCountCache) Delete(context.Context, uint) error                   { return nil }
