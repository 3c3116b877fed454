package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tbourn/quickclip/internal/clip"
	"github.com/tbourn/quickclip/internal/domain"
)

const redisDialTimeout = 5 * time.Second

// NewRedisClient builds a redis client and verifies connectivity via PING.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return rdb, nil
}

// Every key shares one hash tag so the scripts below stay within a single
// cluster slot.
//
//	{prefix}:clip:<code>  JSON-encoded domain.Clip
//	{prefix}:expiry       sorted set of codes scored by expires_at (unix micros)
var (
	// KEYS[1]=record KEYS[2]=expiry ARGV[1]=json ARGV[2]=score ARGV[3]=code
	redisInsert = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("ZADD", KEYS[2], ARGV[2], ARGV[3])
return 1
`)

	// KEYS[1]=record KEYS[2]=expiry ARGV[1]=code ARGV[2]=now ARGV[3]="live"|"expired"
	redisDeleteIf = redis.NewScript(`
local score = redis.call("ZSCORE", KEYS[2], ARGV[1])
if not score then
  if redis.call("EXISTS", KEYS[1]) == 1 and ARGV[3] == "expired" then
    redis.call("DEL", KEYS[1])
    return 1
  end
  return 0
end
local exp = tonumber(score)
local now = tonumber(ARGV[2])
if ARGV[3] == "live" and exp <= now then
  return 0
end
if ARGV[3] == "expired" and exp > now then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("ZREM", KEYS[2], ARGV[1])
return 1
`)
)

// RedisBackend stores clips in Redis without using key TTLs: expiry lives in a
// sorted set that the sweeper pages through.
type RedisBackend struct {
	rdb    redis.UniversalClient
	prefix string
}

var _ clip.Backend = (*RedisBackend)(nil)

// NewRedisBackend returns a clip.Backend over rdb. An empty prefix defaults
// to "quickclip".
func NewRedisBackend(rdb redis.UniversalClient, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "quickclip"
	}
	return &RedisBackend{rdb: rdb, prefix: prefix}
}

func (b *RedisBackend) recordKey(code string) string {
	return "{" + b.prefix + "}:clip:" + code
}

func (b *RedisBackend) expiryKey() string {
	return "{" + b.prefix + "}:expiry"
}

func score(t time.Time) int64 { return t.UnixMicro() }

func (b *RedisBackend) Insert(ctx context.Context, c *domain.Clip) (bool, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return false, fmt.Errorf("encode clip: %w", err)
	}
	n, err := redisInsert.Run(ctx, b.rdb,
		[]string{b.recordKey(c.Code), b.expiryKey()},
		payload, score(c.ExpiresAt), c.Code,
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (b *RedisBackend) Get(ctx context.Context, code string) (*domain.Clip, error) {
	raw, err := b.rdb.Get(ctx, b.recordKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, clip.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var c domain.Clip
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode clip %s: %w", code, err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.ExpiresAt = c.ExpiresAt.UTC()
	return &c, nil
}

func (b *RedisBackend) deleteIf(ctx context.Context, code string, now time.Time, mode string) (bool, error) {
	n, err := redisDeleteIf.Run(ctx, b.rdb,
		[]string{b.recordKey(code), b.expiryKey()},
		code, score(now), mode,
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (b *RedisBackend) DeleteLive(ctx context.Context, code string, now time.Time) (bool, error) {
	return b.deleteIf(ctx, code, now, "live")
}

func (b *RedisBackend) DeleteExpired(ctx context.Context, code string, now time.Time) (bool, error) {
	return b.deleteIf(ctx, code, now, "expired")
}

// ExpiredCodes reads the lowest scores of the expiry set.
func (b *RedisBackend) ExpiredCodes(ctx context.Context, now time.Time, limit int) ([]string, error) {
	opt := &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(score(now), 10),
	}
	if limit > 0 {
		opt.Count = int64(limit)
	}
	return b.rdb.ZRangeByScore(ctx, b.expiryKey(), opt).Result()
}

// Count uses the expiry set's cardinality; every record has exactly one entry.
func (b *RedisBackend) Count(ctx context.Context) (int64, error) {
	return b.rdb.ZCard(ctx, b.expiryKey()).Result()
}
