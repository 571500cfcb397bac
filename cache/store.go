// Package cache is the Cache Store (§4.A): a key-value store with TTL,
// atomic counters, and pattern delete, used for search-result caching, the
// query-embedding index, and as the queue broker's backing store
// (core/broker.Redis uses the same client directly). Grounded on
// evalgo-org-eve's RedisRepository (client construction, JSON marshal of
// values, redis.Nil-as-miss) generalized to the documented contract: string
// keys, JSON values, per-key TTL, never throwing into callers.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent. Callers treat this as
// a normal outcome, never a failure.
var ErrMiss = errors.New("cache: miss")

// Store is the Cache Store contract from §4.A. Every method degrades to
// its documented miss/no-op behavior on a connection failure rather than
// returning an error — the one exception is Ping, which is the explicit
// health check the admin surface (§4.L) needs a real answer from.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string, dest any) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, bool, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	DeletePattern(ctx context.Context, pattern string) error
	Ping(ctx context.Context) error
	Close() error
}

// HashKey produces the stable short hex digest used for cache-key
// fingerprinting (§3 SearchCacheEntry, §4.A hashKey).
func HashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}

type Redis struct {
	client *redis.Client
}

type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Dial connects with up to 3 reconnect attempts, exponential backoff
// capped at 2s, matching §4.A's connection retry policy. The offline queue
// is intentionally not used — callers proceed without cache when the
// store is unavailable rather than buffering writes.
func Dial(ctx context.Context, cfg Config) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr(cfg),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	var lastErr error
	backoff := 250 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		lastErr = client.Ping(pingCtx).Err()
		cancel()
		if lastErr == nil {
			return &Redis{client: client}, nil
		}
		slog.Warn("cache: dial attempt failed", slog.Int("attempt", attempt+1), slog.String("err", lastErr.Error()))
		time.Sleep(backoff)
		backoff *= 2
		if backoff > 2*time.Second {
			backoff = 2 * time.Second
		}
	}
	return nil, lastErr
}

func addr(cfg Config) string {
	if cfg.Port == 0 {
		cfg.Port = 6379
	}
	return cfg.Host + ":" + strconv.Itoa(cfg.Port)
}

// NewFromClient wraps an already-constructed client, used by tests against
// miniredis.
func NewFromClient(c *redis.Client) *Redis { return &Redis{client: c} }

func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err // a marshal failure is a caller bug, not a cache-store failure
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		slog.Warn("cache: set failed, continuing without cache", slog.String("key", key), slog.String("err", err.Error()))
		return nil
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string, dest any) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		slog.Warn("cache: get failed, treating as miss", slog.String("key", key), slog.String("err", err.Error()))
		return ErrMiss
	}
	return json.Unmarshal(data, dest)
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		slog.Warn("cache: delete failed", slog.String("key", key), slog.String("err", err.Error()))
	}
	return nil
}

func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		slog.Warn("cache: exists failed, assuming absent", slog.String("key", key), slog.String("err", err.Error()))
		return false, nil
	}
	return n > 0, nil
}

func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := r.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, nil
	}
	if d < 0 {
		return 0, false, nil
	}
	return d, true, nil
}

func (r *Redis) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := r.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		slog.Warn("cache: incrBy failed", slog.String("key", key), slog.String("err", err.Error()))
		return 0, nil
	}
	return n, nil
}

// DeletePattern streams a SCAN over pattern and deletes every matching key,
// never blocking the server the way KEYS would.
func (r *Redis) DeletePattern(ctx context.Context, pattern string) error {
	iter := r.client.Scan(ctx, 0, pattern, 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		slog.Warn("cache: scan failed during pattern delete", slog.String("pattern", pattern), slog.String("err", err.Error()))
		return nil
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		slog.Warn("cache: pattern delete failed", slog.String("pattern", pattern), slog.String("err", err.Error()))
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error { return r.client.Close() }

// WindowIndex is the narrow sorted-set contract the semantic-dedup index
// (§4.D) needs beyond plain key-value access: a recency window scored by
// insertion timestamp, so eviction of stale entries is a single
// ZREMRANGEBYSCORE rather than a scan. Only Redis implements it — the
// generic KV Store interface stays free of sorted-set operations that the
// queue broker and search-result cache never need.
type WindowIndex interface {
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error)
	ZRemRangeByScore(ctx context.Context, key string, min, max float64) error
}

func (r *Redis) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if err := r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err(); err != nil {
		slog.Warn("cache: zadd failed", slog.String("key", key), slog.String("err", err.Error()))
	}
	return nil
}

func (r *Redis) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	members, err := r.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: formatScore(min),
		Max: formatScore(max),
	}).Result()
	if err != nil {
		slog.Warn("cache: zrangebyscore failed", slog.String("key", key), slog.String("err", err.Error()))
		return nil, nil
	}
	return members, nil
}

func (r *Redis) ZRemRangeByScore(ctx context.Context, key string, min, max float64) error {
	if err := r.client.ZRemRangeByScore(ctx, key, formatScore(min), formatScore(max)).Err(); err != nil {
		slog.Warn("cache: zremrangebyscore failed", slog.String("key", key), slog.String("err", err.Error()))
	}
	return nil
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var _ Store = (*Redis)(nil)
var _ WindowIndex = (*Redis)(nil)
