package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"listraksync/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisQueue is a FIFO of SyncJobs on a redis list: LPUSH to enqueue, BRPOP
// to dequeue. Failed jobs go to "<key>:dead".
type RedisQueue struct {
	client  *redis.Client
	key     string
	deadKey string
	now     func() time.Time
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{
		client:  client,
		key:     key,
		deadKey: key + ":dead",
		now:     time.Now,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job models.SyncJob) error {
	data, err := json.Marshal(stamp(job, q.now()))
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("push job to %s: %w", q.key, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (models.SyncJob, bool, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) {
			return models.SyncJob{}, false, nil
		}
		return models.SyncJob{}, false, fmt.Errorf("pop job from %s: %w", q.key, err)
	}
	if len(res) != 2 {
		return models.SyncJob{}, false, nil
	}
	var job models.SyncJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return models.SyncJob{}, false, fmt.Errorf("decode job: %w", err)
	}
	return job, true, nil
}

func (q *RedisQueue) DeadLetter(ctx context.Context, job models.SyncJob, cause error) error {
	data, err := json.Marshal(deadLetter(job, cause, q.now()))
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}
	if err := q.client.LPush(ctx, q.deadKey, data).Err(); err != nil {
		return fmt.Errorf("push dead letter %s: %w", job.ID, err)
	}
	return nil
}

// Len returns the number of waiting jobs.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// DeadLetters lists failed jobs, newest first.
func (q *RedisQueue) DeadLetters(ctx context.Context) ([]DeadLetter, error) {
	raw, err := q.client.LRange(ctx, q.deadKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read dead letters: %w", err)
	}
	out := make([]DeadLetter, 0, len(raw))
	for _, item := range raw {
		var dl DeadLetter
		if err := json.Unmarshal([]byte(item), &dl); err != nil {
			return nil, fmt.Errorf("decode dead letter: %w", err)
		}
		out = append(out, dl)
	}
	return out, nil
}
