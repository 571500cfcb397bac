package broker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/briefloop/researchcore/core/message"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a Redis-backed Broker. One RedisConfig/Broker pair
// backs one logical queue (research jobs, delivery jobs); callers construct
// two brokers against the same Redis instance with different Topic values.
type RedisConfig struct {
	Topic          string        `yaml:"Topic" mapstructure:"topic" validate:"required"`
	MaxRetries     int           `yaml:"MaxRetries" mapstructure:"maxRetries" validate:"min=0"`
	RetryBaseDelay time.Duration `yaml:"RetryBaseDelay" mapstructure:"retryBaseDelay"`
	// CompletedRetention / FailedRetention bound how long Ack'd / dead-lettered
	// entries are kept in their audit zset before being trimmed (Depths reports
	// the failed zset's size).
	CompletedRetention time.Duration `yaml:"CompletedRetention" mapstructure:"completedRetention"`
	FailedRetention    time.Duration `yaml:"FailedRetention" mapstructure:"failedRetention"`
}

func (c *RedisConfig) withDefaults() *RedisConfig {
	cp := *c
	if cp.MaxRetries == 0 {
		cp.MaxRetries = 5
	}
	if cp.RetryBaseDelay == 0 {
		cp.RetryBaseDelay = time.Second
	}
	if cp.CompletedRetention == 0 {
		cp.CompletedRetention = 24 * time.Hour
	}
	if cp.FailedRetention == 0 {
		cp.FailedRetention = 7 * 24 * time.Hour
	}
	return &cp
}

// Redis is a Broker backed by a Redis list (waiting), a hash (in-flight
// payloads and retry counts), a delayed zset (Nack'd messages scheduled for a
// later retry), and a dedup set keyed by message.HeaderDedupKey. This is the
// queue broker backing named by the spec's Cache Store component: jobs live
// in the same Redis instance that backs the search cache.
type Redis struct {
	client *redis.Client
	conf   *RedisConfig
}

func NewRedis(client *redis.Client, conf *RedisConfig) *Redis {
	return &Redis{client: client, conf: conf.withDefaults()}
}

func (r *Redis) waitingKey() string  { return fmt.Sprintf("queue:%s:waiting", r.conf.Topic) }
func (r *Redis) delayedKey() string  { return fmt.Sprintf("queue:%s:delayed", r.conf.Topic) }
func (r *Redis) payloadKey() string  { return fmt.Sprintf("queue:%s:payload", r.conf.Topic) }
func (r *Redis) retriesKey() string  { return fmt.Sprintf("queue:%s:retries", r.conf.Topic) }
func (r *Redis) dedupKey() string    { return fmt.Sprintf("queue:%s:dedup", r.conf.Topic) }
func (r *Redis) completedKey() string { return fmt.Sprintf("queue:%s:completed", r.conf.Topic) }
func (r *Redis) failedKey() string   { return fmt.Sprintf("queue:%s:failed", r.conf.Topic) }

// Produce appends msgs to the waiting list. A msg whose dedup key is already
// present in the dedup set (meaning it is waiting, delayed, or in flight) is
// silently dropped — this is the mechanism behind §4.G's idempotent enqueue.
func (r *Redis) Produce(ctx context.Context, msgs ...*message.Msg) error {
	for _, msg := range msgs {
		id := uuid.NewString()
		dedup, hasDedup := msg.DedupKey()
		if hasDedup {
			added, err := r.client.SAdd(ctx, r.dedupKey(), dedup).Result()
			if err != nil {
				return fmt.Errorf("broker: dedup check: %w", err)
			}
			if added == 0 {
				continue
			}
		}
		payload, err := message.Marshal(envelope{ID: id, Payload: msg.Payload(), DedupKey: dedup})
		if err != nil {
			return fmt.Errorf("broker: encode envelope: %w", err)
		}
		pipe := r.client.TxPipeline()
		pipe.HSet(ctx, r.payloadKey(), id, payload)
		pipe.RPush(ctx, r.waitingKey(), id)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("broker: enqueue: %w", err)
		}
	}
	return nil
}

// Consume promotes any due delayed messages, then pops the next waiting id.
func (r *Redis) Consume(ctx context.Context) (*message.Msg, message.ID, error) {
	if err := r.promoteDelayed(ctx); err != nil {
		slog.Warn("broker promote delayed failed", slog.String("err", err.Error()))
	}
	id, err := r.client.LPop(ctx, r.waitingKey()).Result()
	if err == redis.Nil {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("broker: consume: %w", err)
	}
	raw, err := r.client.HGet(ctx, r.payloadKey(), id).Result()
	if err == redis.Nil {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("broker: load payload: %w", err)
	}
	var env envelope
	if err := message.Unmarshal([]byte(raw), &env); err != nil {
		return nil, nil, fmt.Errorf("broker: decode envelope: %w", err)
	}
	msg := message.New(env.Payload)
	if env.DedupKey != "" {
		msg.Headers().Set(message.HeaderDedupKey, env.DedupKey)
	}
	return msg, id, nil
}

func (r *Redis) promoteDelayed(ctx context.Context) error {
	now := float64(time.Now().Unix())
	ids, err := r.client.ZRangeByScore(ctx, r.delayedKey(), &redis.ZRangeBy{Min: "-inf", Max: fmt.Sprintf("%f", now)}).Result()
	if err != nil || len(ids) == 0 {
		return err
	}
	pipe := r.client.TxPipeline()
	for _, id := range ids {
		pipe.ZRem(ctx, r.delayedKey(), id)
		pipe.RPush(ctx, r.waitingKey(), id)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Redis) Ack(ctx context.Context, id message.ID) error {
	sid := fmt.Sprint(id)
	raw, err := r.client.HGet(ctx, r.payloadKey(), sid).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("broker: ack load: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.HDel(ctx, r.payloadKey(), sid)
	pipe.HDel(ctx, r.retriesKey(), sid)
	if raw != "" {
		var env envelope
		if err := message.Unmarshal([]byte(raw), &env); err == nil && env.DedupKey != "" {
			pipe.SRem(ctx, r.dedupKey(), env.DedupKey)
		}
	}
	pipe.ZAdd(ctx, r.completedKey(), redis.Z{Score: float64(time.Now().Unix()), Member: sid})
	pipe.ZRemRangeByScore(ctx, r.completedKey(), "-inf", fmt.Sprintf("%f", float64(time.Now().Add(-r.conf.CompletedRetention).Unix())))
	_, err = pipe.Exec(ctx)
	return err
}

// Nack re-queues the message with exponential backoff, or moves it to the
// failed set once conf.MaxRetries is exceeded (the broker's retry policy
// referenced by §7 "broker retries per policy").
func (r *Redis) Nack(ctx context.Context, id message.ID) error {
	sid := fmt.Sprint(id)
	retries, err := r.client.HIncrBy(ctx, r.retriesKey(), sid, 1).Result()
	if err != nil {
		return fmt.Errorf("broker: nack incr: %w", err)
	}
	if int(retries) > r.conf.MaxRetries {
		raw, _ := r.client.HGet(ctx, r.payloadKey(), sid).Result()
		pipe := r.client.TxPipeline()
		pipe.HDel(ctx, r.payloadKey(), sid)
		pipe.HDel(ctx, r.retriesKey(), sid)
		if raw != "" {
			var env envelope
			if err := message.Unmarshal([]byte(raw), &env); err == nil && env.DedupKey != "" {
				pipe.SRem(ctx, r.dedupKey(), env.DedupKey)
			}
		}
		pipe.ZAdd(ctx, r.failedKey(), redis.Z{Score: float64(time.Now().Unix()), Member: sid})
		pipe.ZRemRangeByScore(ctx, r.failedKey(), "-inf", fmt.Sprintf("%f", float64(time.Now().Add(-r.conf.FailedRetention).Unix())))
		_, err := pipe.Exec(ctx)
		return err
	}
	delay := r.conf.RetryBaseDelay * time.Duration(1<<uint(retries-1))
	return r.client.ZAdd(ctx, r.delayedKey(), redis.Z{
		Score:  float64(time.Now().Add(delay).Unix()),
		Member: sid,
	}).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// Depths reports waiting/active/delayed/failed counts for the admin health
// endpoint (§6 GET /admin/queue/health). "Active" is whatever remains in the
// payload hash once waiting and delayed are accounted for — a message stays
// in the payload hash from Produce until Ack or terminal Nack, so the
// difference is exactly what's currently checked out by a consumer.
func (r *Redis) Depths(ctx context.Context) (waiting, active, delayed, failed int64, err error) {
	pipe := r.client.TxPipeline()
	w := pipe.LLen(ctx, r.waitingKey())
	d := pipe.ZCard(ctx, r.delayedKey())
	f := pipe.ZCard(ctx, r.failedKey())
	total := pipe.HLen(ctx, r.payloadKey())
	if _, err = pipe.Exec(ctx); err != nil {
		return 0, 0, 0, 0, err
	}
	active = total.Val() - w.Val() - d.Val()
	if active < 0 {
		active = 0
	}
	return w.Val(), active, d.Val(), f.Val(), nil
}

type envelope struct {
	ID       string `json:"id"`
	Payload  []byte `json:"payload"`
	DedupKey string `json:"dedupKey,omitempty"`
}
