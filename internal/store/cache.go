package store

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	SetEx(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Close() error
}

// QueryCache caches submission query results per agency. Entries are never
// merged: every mutation bumps the agency version, so older keys are simply
// never read again and expire on their own.
type QueryCache struct {
	redis RedisClient
	ttl   time.Duration
}

func NewQueryCache(rdb RedisClient, ttl time.Duration) *QueryCache {
	return &QueryCache{redis: rdb, ttl: ttl}
}

func versionKey(agencyID uuid.UUID) string {
	return fmt.Sprintf("submissions:ver:%s", agencyID)
}

func (c *QueryCache) version(ctx context.Context, agencyID uuid.UUID) string {
	v, err := c.redis.Get(ctx, versionKey(agencyID)).Result()
	if err != nil {
		return "0"
	}
	return v
}

func (c *QueryCache) key(ctx context.Context, agencyID uuid.UUID, query any) (string, error) {
	raw, err := json.Marshal(query)
	if err != nil {
		return "", err
	}
	sum := sha1.Sum(raw)
	return fmt.Sprintf("submissions:%s:v%s:%s", agencyID, c.version(ctx, agencyID), hex.EncodeToString(sum[:])), nil
}

// Get loads the cached result of query into dst. key is the slot for the
// agency version read before the lookup; pass it to Set so a result computed
// before a concurrent Invalidate lands under the old version and is never read.
// An empty key means the result must not be cached.
func (c *QueryCache) Get(ctx context.Context, agencyID uuid.UUID, query any, dst any) (key string, hit bool) {
	if c == nil {
		return "", false
	}
	key, err := c.key(ctx, agencyID, query)
	if err != nil {
		return "", false
	}
	cached, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return key, false
	}
	return key, json.Unmarshal([]byte(cached), dst) == nil
}

// Set stores value under a key returned by Get
func (c *QueryCache) Set(ctx context.Context, key string, value any) {
	if c == nil || key == "" {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.redis.SetEx(ctx, key, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to cache submission query")
	}
}

// Invalidate drops every cached query of the agency
func (c *QueryCache) Invalidate(ctx context.Context, agencyID uuid.UUID) {
	if c == nil {
		return
	}
	if err := c.redis.Incr(ctx, versionKey(agencyID)).Err(); err != nil {
		log.Warn().Err(err).Str("agency_id", agencyID.String()).Msg("Failed to invalidate submission cache")
	}
}
