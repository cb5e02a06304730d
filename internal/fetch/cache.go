package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is an optional Redis-backed fetch cache. Rendered pages are
// expensive; promotional content changes on a scale of days, so a TTL
// measured in hours is safe.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache builds a Cache from a Redis URL. Returns nil (cache
// disabled) when the URL is empty or malformed.
func NewCache(redisURL string, ttl time.Duration) *Cache {
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &Cache{rdb: redis.NewClient(opts), ttl: ttl}
}

func cacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return "promowatch:fetch:" + hex.EncodeToString(sum[:])
}

// Get returns the cached Result for a URL, or nil on miss or any
// Redis error. Cache failures never block a fetch.
func (c *Cache) Get(ctx context.Context, rawURL string) *Result {
	if c == nil {
		return nil
	}
	raw, err := c.rdb.Get(ctx, cacheKey(rawURL)).Bytes()
	if err != nil {
		return nil
	}
	var res Result
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil
	}
	if res.Empty() {
		return nil
	}
	return &res
}

// Set stores a successful Result. Errors are ignored; the cache is
// best effort.
func (c *Cache) Set(ctx context.Context, rawURL string, res *Result) {
	if c == nil || res.Empty() {
		return
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, cacheKey(rawURL), raw, c.ttl)
}
