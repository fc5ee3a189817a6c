package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Addy-9595/northeasternconnect-backend/internal/crypto"
)

// slidingWindowScript prunes entries at or before the window start, then
// records the attempt only when the remaining count is below the limit.
// ARGV: now ms, window start ms, limit, member, window ms.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]

redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[2])
if redis.call('ZCARD', key) >= tonumber(ARGV[3]) then
	return 0
end
redis.call('ZADD', key, ARGV[1], ARGV[4])
redis.call('PEXPIRE', key, ARGV[5])
return 1
`)

// RedisStore handles Redis operations for shared rate limits, caching and
// token revocation.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client returns the underlying Redis client.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

func rateLimitKey(key string) string {
	return "ratelimit:" + key
}

func revokedTokenKey(tokenID string) string {
	return "revoked:" + tokenID
}

func violationsKey(ip string) string {
	return fmt.Sprintf("violations:ip:%s", ip)
}

func blockedKey(ip string) string {
	return fmt.Sprintf("blocked:ip:%s", ip)
}

// AllowInWindow records an attempt for key if fewer than limit attempts were
// recorded in the trailing window. Check and record run atomically on the
// server, so every process sharing the Redis instance sees one ledger.
func (s *RedisStore) AllowInWindow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (bool, error) {
	member := crypto.NewULID(now)
	allowed, err := slidingWindowScript.Run(ctx, s.client,
		[]string{rateLimitKey(key)},
		now.UnixMilli(), now.Add(-window).UnixMilli(), limit, member, window.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return allowed == 1, nil
}

// RevokeToken marks a token ID as revoked until ttl elapses.
func (s *RedisStore) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedTokenKey(tokenID), "1", ttl).Err()
}

// IsTokenRevoked reports whether a token ID has been revoked.
func (s *RedisStore) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedTokenKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// TrackViolation counts a rate limit violation for ip within the past hour.
func (s *RedisStore) TrackViolation(ctx context.Context, ip string) (int64, error) {
	key := violationsKey(ip)
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// BlockIP blocks an IP for the specified duration.
func (s *RedisStore) BlockIP(ctx context.Context, ip string, duration time.Duration, reason string) error {
	return s.client.Set(ctx, blockedKey(ip), reason, duration).Err()
}

// IsIPBlocked checks if an IP is blocked.
func (s *RedisStore) IsIPBlocked(ctx context.Context, ip string) (bool, error) {
	n, err := s.client.Exists(ctx, blockedKey(ip)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Cache returns a cache backend storing values under prefix.
func (s *RedisStore) Cache(prefix string) *RedisCache {
	return &RedisCache{client: s.client, prefix: prefix}
}

// RedisCache is a byte-valued cache backend with per-entry expiry.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// Get returns the cached bytes for key, if present.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Set stores value under key for ttl.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}
