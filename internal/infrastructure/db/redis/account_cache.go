package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/learningreport/account-service/internal/core/domain"
	"github.com/learningreport/account-service/internal/core/ports"
)

const (
	defaultCacheTTL = 5 * time.Minute
	// generationTTL outlives any in-flight read-through by a wide margin.
	generationTTL = 24 * time.Hour
)

var errStaleWrite = errors.New("account invalidated since read")

// AccountCache keeps account views in Redis.
//
// Keys:
//   - account:<id>      JSON view, expires after the cache TTL
//   - account:<id>:gen  invalidation counter, bumped on every Invalidate
type AccountCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.AccountCache = (*AccountCache)(nil)

// NewAccountCache creates an AccountCache wrapping the given Redis client.
// A non-positive ttl uses defaultCacheTTL.
func NewAccountCache(client *redis.Client, ttl time.Duration) *AccountCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &AccountCache{client: client, ttl: ttl}
}

// Get returns the cached view for id, or a nil View on a miss, together with
// the current generation of id.
func (c *AccountCache) Get(ctx context.Context, id int64) (ports.CachedAccount, error) {
	vals, err := c.client.MGet(ctx, c.key(id), c.genKey(id)).Result()
	if err != nil {
		return ports.CachedAccount{}, fmt.Errorf("cache get: %w", err)
	}

	var out ports.CachedAccount
	if gen, ok := vals[1].(string); ok {
		out.Version, err = strconv.ParseInt(gen, 10, 64)
		if err != nil {
			return ports.CachedAccount{}, fmt.Errorf("cache decode generation: %w", err)
		}
	}

	raw, ok := vals[0].(string)
	if !ok {
		return out, nil
	}
	var view domain.AccountView
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		return ports.CachedAccount{}, fmt.Errorf("cache decode: %w", err)
	}
	out.View = &view
	return out, nil
}

// Set stores view until the cache TTL elapses, unless id was invalidated after
// the lookup that returned version. A dropped write is not an error.
func (c *AccountCache) Set(ctx context.Context, view domain.AccountView, version int64) error {
	raw, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}

	genKey := c.genKey(view.ID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStaleWrite
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(view.ID), raw, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil, errors.Is(err, errStaleWrite), errors.Is(err, redis.TxFailedErr):
		return nil
	default:
		return fmt.Errorf("cache set: %w", err)
	}
}

// Invalidate drops the entry for id and bumps its generation, which makes any
// Set still holding an older version a no-op.
func (c *AccountCache) Invalidate(ctx context.Context, id int64) error {
	genKey := c.genKey(id)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, generationTTL)
		pipe.Del(ctx, c.key(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

func (c *AccountCache) key(id int64) string {
	return "account:" + strconv.FormatInt(id, 10)
}

func (c *AccountCache) genKey(id int64) string {
	return c.key(id) + ":gen"
}
