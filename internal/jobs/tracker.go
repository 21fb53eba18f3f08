package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hyperjump/kakushi/internal/config"
)

// ErrJobNotFound is returned when a job id is unknown or expired.
var ErrJobNotFound = errors.New("job not found")

// Tracker stores job snapshots.
type Tracker interface {
	Save(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// NewTracker returns the tracker selected by cfg.Backend. The redis backend
// pings the server before returning.
func NewTracker(ctx context.Context, cfg config.JobsConfig) (Tracker, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryTracker(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisTracker(client, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("jobs: unknown backend %q", cfg.Backend)
	}
}
