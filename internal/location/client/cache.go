package client

import (
	"context"
	"encoding/json"
	"time"

	"backoffice_portal_backend/platform/config"
	"backoffice_portal_backend/platform/logger"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Cache is a two-tier provider response cache: an in-process TTL tier that is
// always on, and an optional shared Redis tier so multiple instances warm
// each other. Values are stored as JSON in both tiers.
type Cache struct {
	mem *gocache.Cache
	rdb *redis.Client
	ttl time.Duration
	log *logger.Logger
}

// NewCache creates the cache. rdb may be nil to run with the in-process tier
// only.
func NewCache(cfg config.CacheConfig, rdb *redis.Client, log *logger.Logger) *Cache {
	ttl := cfg.GetCacheTTL()
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	cleanup := cfg.GetCacheCleanupInterval()
	if cleanup <= 0 {
		cleanup = 5 * time.Minute
	}

	return &Cache{
		mem: gocache.New(ttl, cleanup),
		rdb: rdb,
		ttl: ttl,
		log: log,
	}
}

// Get loads a cached value into dest. Returns false on miss or decode
// failure; a corrupt entry is treated as a miss, never an error.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	if raw, found := c.mem.Get(key); found {
		if data, ok := raw.([]byte); ok {
			if err := json.Unmarshal(data, dest); err == nil {
				return true
			}
			c.mem.Delete(key)
		}
	}

	if c.rdb == nil {
		return false
	}

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil && c.log != nil {
			c.log.Warn("redis cache read failed", "key", key, "error", err)
		}
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false
	}

	// Promote to the in-process tier.
	c.mem.Set(key, data, c.ttl)
	return true
}

// Set stores a value in both tiers. Cache writes are best-effort; failures
// are logged and ignored.
func (c *Cache) Set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}

	c.mem.Set(key, data, c.ttl)

	if c.rdb == nil {
		return
	}

	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil && c.log != nil {
		c.log.Warn("redis cache write failed", "key", key, "error", err)
	}
}

// Flush clears the in-process tier. Used by the postal catalog refresh job
// after re-warming.
func (c *Cache) Flush() {
	c.mem.Flush()
}
