package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "servicedesk:jobs:"

// claimScript moves up to ARGV[2] due ids from the delayed set into the processing set
// with the visibility deadline as score, returning their payloads.
var claimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
local out = {}
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  local payload = redis.call('HGET', KEYS[3], id)
  if payload then
    redis.call('ZADD', KEYS[2], ARGV[3], id)
    table.insert(out, payload)
  end
end
return out
`)

// reapScript returns expired claims to the delayed set, due immediately.
var reapScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('ZADD', KEYS[2], ARGV[1], id)
end
return #ids
`)

// RedisQueue stores jobs in a delayed ZSET, a processing ZSET and a payload HASH.
type RedisQueue struct {
	client     *redis.Client
	delayed    string
	processing string
	data       string
}

// NewRedisQueue creates a queue under the default key prefix.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return NewRedisQueueWithPrefix(client, defaultKeyPrefix)
}

// NewRedisQueueWithPrefix creates a queue under prefix.
func NewRedisQueueWithPrefix(client *redis.Client, prefix string) *RedisQueue {
	return &RedisQueue{
		client:     client,
		delayed:    prefix + "delayed",
		processing: prefix + "processing",
		data:       prefix + "data",
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, q.data, job.ID, raw)
		p.ZAdd(ctx, q.delayed, redis.Z{Score: score(job.RunAt), Member: job.ID})
		return nil
	})
	return err
}

func (q *RedisQueue) Claim(ctx context.Context, now time.Time, limit int, visibility time.Duration) ([]Job, error) {
	if limit <= 0 {
		limit = 1
	}
	res, err := claimScript.Run(ctx, q.client,
		[]string{q.delayed, q.processing, q.data},
		score(now), limit, score(now.Add(visibility)),
	).StringSlice()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	out := make([]Job, 0, len(res))
	for _, raw := range res {
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			return out, fmt.Errorf("decode job: %w", err)
		}
		out = append(out, job)
	}
	return out, nil
}

func (q *RedisQueue) Ack(ctx context.Context, id string) error {
	_, err := q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, q.processing, id)
		p.ZRem(ctx, q.delayed, id)
		p.HDel(ctx, q.data, id)
		return nil
	})
	return err
}

func (q *RedisQueue) Retry(ctx context.Context, job Job, runAt time.Time) error {
	job.RunAt = runAt.UTC()
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	_, err = q.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZRem(ctx, q.processing, job.ID)
		p.HSet(ctx, q.data, job.ID, raw)
		p.ZAdd(ctx, q.delayed, redis.Z{Score: score(job.RunAt), Member: job.ID})
		return nil
	})
	return err
}

func (q *RedisQueue) ReapExpired(ctx context.Context, now time.Time) (int, error) {
	n, err := reapScript.Run(ctx, q.client, []string{q.processing, q.delayed}, score(now)).Int()
	if err != nil && err != redis.Nil {
		return 0, err
	}
	return n, nil
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}
