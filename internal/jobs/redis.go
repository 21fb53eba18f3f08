package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const jobPrefix = "kakushi:job:"

// RedisTracker stores jobs as JSON values that expire after ttl.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTracker returns a tracker over client. A zero ttl keeps jobs forever.
func NewRedisTracker(client *redis.Client, ttl time.Duration) *RedisTracker {
	return &RedisTracker{client: client, ttl: ttl}
}

// Save writes the job and refreshes its expiry.
func (r *RedisTracker) Save(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := r.client.Set(ctx, jobPrefix+job.ID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// Get reads a job by id.
func (r *RedisTracker) Get(ctx context.Context, id string) (*Job, error) {
	data, err := r.client.Get(ctx, jobPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// Delete removes a job.
func (r *RedisTracker) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, jobPrefix+id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return nil
}

// Close closes the redis client.
func (r *RedisTracker) Close() error {
	return r.client.Close()
}
