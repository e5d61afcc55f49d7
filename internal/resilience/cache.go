// internal/resilience/cache.go
package resilience

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedResponse is the full provider payload stored in the result cache.
// A hit round-trips byte-identically through JSON.
type CachedResponse struct {
	Text         string  `json:"text"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}

// ResultCache short-circuits repeated provider calls for the same
// (query, options) pair within the TTL.
type ResultCache interface {
	Get(ctx context.Context, key string) (*CachedResponse, bool, error)
	Set(ctx context.Context, key string, value *CachedResponse, ttl time.Duration) error
}

// CacheKey derives a stable cache key from normalized query text plus the
// serialized option set. Whitespace runs collapse and case folds so
// trivially different phrasings of the same query share an entry.
func CacheKey(query string, opts interface{}) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))

	serialized, err := json.Marshal(opts)
	if err != nil {
		serialized = []byte(fmt.Sprintf("%v", opts))
	}

	sum := sha256.Sum256([]byte(normalized + "|" + string(serialized)))
	return "audit:result:" + hex.EncodeToString(sum[:])
}

// redisCache is the production cache backed by Redis.
type redisCache struct {
	client *redis.Client
}

// NewRedisCache creates a ResultCache on an existing Redis client.
func NewRedisCache(client *redis.Client) ResultCache {
	return &redisCache{client: client}
}

func (c *redisCache) Get(ctx context.Context, key string) (*CachedResponse, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var value CachedResponse
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	return &value, true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value *CachedResponse, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// memoryCache is the in-process fallback used in tests and in deployments
// without Redis.
type memoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value     CachedResponse
	expiresAt time.Time
}

// NewMemoryCache creates an in-process ResultCache.
func NewMemoryCache() ResultCache {
	return &memoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *memoryCache) Get(_ context.Context, key string) (*CachedResponse, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false, nil
	}

	value := entry.value
	return &value, true, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value *CachedResponse, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{
		value:     *value,
		expiresAt: c.now().Add(ttl),
	}
	return nil
}
