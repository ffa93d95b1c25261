// Package stats caches collection aggregates in Redis so stats reads do not
// rescan the backing tables on every request. Each collection carries a version
// counter; writers bump it to invalidate, readers key entries by version.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// Cache wraps Redis based caching with per-collection versioning. A nil Cache
// or nil client degrades to calling the loader directly.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func versionKey(collection string) string {
	return fmt.Sprintf("stats:%s:version", collection)
}

// Version returns the current version for a collection, initialising when missing.
func (c *Cache) Version(ctx context.Context, collection string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := versionKey(collection)
	ver, err := c.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// Fetch loads cached stats for a collection or rebuilds them via the loader.
// Concurrent rebuilds of the same key are collapsed by singleflight.
func (c *Cache) Fetch(ctx context.Context, collection string, dest interface{}, loader func(context.Context) (interface{}, error)) error {
	if loader == nil {
		return errors.New("stats: loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return roundTrip(value, dest)
	}

	ver, err := c.Version(ctx, collection)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("stats:%s:%d", collection, ver)

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if err != redis.Nil {
		return err
	}

	ch := c.group.DoChan(key, func() (interface{}, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return nil, err
		}
		return raw, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.([]byte), dest)
	}
}

// Bump invalidates a collection's cached stats by incrementing its version.
func (c *Cache) Bump(ctx context.Context, collection string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(collection)).Err()
}

func roundTrip(value, dest interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
