package infra

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenCache stores the gateway access token under a credential-pair key with
// a TTL. It is injected into the PagoFacil client — never a package global —
// so deployments choose between the Redis implementation (shared across
// replicas) and the in-memory one (single process, tests).
//
// Get returning ("", nil) means cache miss. A stale read race during expiry
// is acceptable: the worst case is a harmless duplicate login call.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, token string, ttl time.Duration) error
}

// ─── Redis implementation ────────────────────────────────────────────────────

type redisTokenCache struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisTokenCache(rdb *redis.Client) TokenCache {
	return &redisTokenCache{rdb: rdb, prefix: "pagofacil:token:"}
}

func (c *redisTokenCache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (c *redisTokenCache) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.prefix+key, token, ttl).Err()
}

// ─── In-memory implementation ────────────────────────────────────────────────

type memoryEntry struct {
	token    string
	expiraEn time.Time
}

type memoryTokenCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

func NewMemoryTokenCache() TokenCache {
	return &memoryTokenCache{entries: make(map[string]memoryEntry)}
}

func (c *memoryTokenCache) Get(_ context.Context, key string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiraEn) {
		return "", nil
	}
	return e.token, nil
}

func (c *memoryTokenCache) Set(_ context.Context, key, token string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{token: token, expiraEn: time.Now().Add(ttl)}
	return nil
}
