package authz

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/minerva-imaging/minervadb/pkg/observability"
	"github.com/minerva-imaging/minervadb/pkg/store"
)

// DecisionCache memoizes permission-check outcomes. Decisions sit in a
// process-local LRU with a TTL, optionally backed by Redis so a fleet of
// instances shares warm entries. Entries are advisory: a stale positive
// lives at most one TTL, and mutating callers invalidate eagerly.
type DecisionCache struct {
	local   *lru.LRU[string, bool]
	redis   *redis.Client
	ttl     time.Duration
	hits    atomic.Int64
	misses  atomic.Int64
	metrics *observability.Metrics
}

// NewDecisionCache creates a decision cache. redisClient may be nil for a
// purely local cache.
func NewDecisionCache(maxEntries int, ttl time.Duration, redisClient *redis.Client) *DecisionCache {
	if maxEntries <= 0 {
		maxEntries = 1024
	}

	return &DecisionCache{
		local: lru.NewLRU[string, bool](maxEntries, nil, ttl),
		redis: redisClient,
		ttl:   ttl,
	}
}

// WithMetrics mirrors hit, miss, and entry counts into the Prometheus
// collectors. Returns the cache for chaining at construction.
func (c *DecisionCache) WithMetrics(m *observability.Metrics) *DecisionCache {
	c.metrics = m
	return c
}

func (c *DecisionCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *DecisionCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *DecisionCache) recordEntries() {
	if c.metrics != nil {
		c.metrics.CacheEntries.Set(float64(c.local.Len()))
	}
}

func decisionKey(userID string, resourceType store.ResourceType, resourceID string, minimum store.Permission) string {
	return fmt.Sprintf("authz:decision:%s:%s:%s:%s", userID, resourceType, resourceID, minimum)
}

// Get retrieves a cached decision, reporting whether one was present
func (c *DecisionCache) Get(ctx context.Context, userID string, resourceType store.ResourceType, resourceID string, minimum store.Permission) (bool, bool) {
	key := decisionKey(userID, resourceType, resourceID, minimum)

	if allowed, ok := c.local.Get(key); ok {
		c.recordHit()
		return allowed, true
	}

	if c.redis != nil {
		val, err := c.redis.Get(ctx, key).Result()
		if err == nil {
			allowed := val == "1"
			c.local.Add(key, allowed)
			c.recordEntries()
			c.recordHit()
			return allowed, true
		}
	}

	c.recordMiss()
	return false, false
}

// Set stores a decision in both tiers
func (c *DecisionCache) Set(ctx context.Context, userID string, resourceType store.ResourceType, resourceID string, minimum store.Permission, allowed bool) {
	key := decisionKey(userID, resourceType, resourceID, minimum)
	c.local.Add(key, allowed)
	c.recordEntries()

	if c.redis != nil {
		val := "0"
		if allowed {
			val = "1"
		}
		c.redis.Set(ctx, key, val, c.ttl)
	}
}

// InvalidateUser drops every cached decision for a user. The local LRU
// cannot be scanned by prefix, so it is purged wholesale; the Redis tier is
// swept by key pattern.
func (c *DecisionCache) InvalidateUser(ctx context.Context, userID string) {
	c.local.Purge()
	c.recordEntries()

	if c.redis != nil {
		pattern := fmt.Sprintf("authz:decision:%s:*", userID)
		iter := c.redis.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			c.redis.Del(ctx, iter.Val())
		}
	}
}

// Purge drops every cached decision in both tiers
func (c *DecisionCache) Purge(ctx context.Context) {
	c.local.Purge()
	c.recordEntries()

	if c.redis != nil {
		iter := c.redis.Scan(ctx, 0, "authz:decision:*", 0).Iterator()
		for iter.Next(ctx) {
			c.redis.Del(ctx, iter.Val())
		}
	}
}

// CacheStats reports hit and miss counts since startup
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
	Entries int     `json:"entries"`
}

// Stats returns cache counters
func (c *DecisionCache) Stats() CacheStats {
	stats := CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.local.Len(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}
