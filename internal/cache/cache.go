// Package cache stores predictions keyed by artifact version and image
// digest so repeated uploads skip the pipeline.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/crimson-sun/pilar/internal/model"
)

// Cache is a prediction store. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (model.Prediction, bool, error)
	Set(ctx context.Context, key string, p model.Prediction) error
	Close() error
}

// Key builds the cache key for an image digest under an artifact version.
// Different artifacts never share entries.
func Key(version, digest string) string {
	return "pilar:" + version + ":" + digest
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (model.Prediction, bool, error) {
	return model.Prediction{}, false, nil
}
func (Nop) Set(context.Context, string, model.Prediction) error { return nil }
func (Nop) Close() error                                        { return nil }

// Options configures the Redis cache.
type Options struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// Redis stores predictions as JSON strings with a TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis-backed cache. The connection is established lazily.
func NewRedis(opts Options) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &Redis{client: client, ttl: opts.TTL}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) (model.Prediction, bool, error) {
	ba, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Prediction{}, false, nil
	}
	if err != nil {
		return model.Prediction{}, false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	var p model.Prediction
	if err := json.Unmarshal(ba, &p); err != nil {
		return model.Prediction{}, false, fmt.Errorf("cache: decoding %s: %w", key, err)
	}
	return p, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, p model.Prediction) error {
	// No caching if ttl < 0.
	if r.ttl < 0 {
		return nil
	}
	ba, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, key, ba, r.ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
