package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/story-weaver/pkg/story"
)

// RedisKeyPrefix namespaces save slots.
const RedisKeyPrefix = "interactiveStorySave:"

// RedisStore keeps one JSON record per slot, with no expiry.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger
}

// Ensure RedisStore implements SaveStore interface
var _ SaveStore = (*RedisStore)(nil)

// NewRedisStore accepts either a redis:// URL or a bare host:port.
func NewRedisStore(redisURL string, logger *slog.Logger) (*RedisStore, error) {
	opts := &redis.Options{Addr: redisURL}
	if strings.Contains(redisURL, "://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis URL: %w", err)
		}
		opts = parsed
	}
	return &RedisStore{
		client: redis.NewClient(opts),
		logger: logger,
	}, nil
}

func redisKey(slot string) string {
	return RedisKeyPrefix + slot
}

func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Debug("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStore) WaitForConnection(ctx context.Context, attempts int, delay time.Duration) error {
	for i := 0; i < attempts; i++ {
		err := r.Ping(ctx)
		if err == nil {
			return nil
		}
		r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("redis did not become available after %d attempts", attempts)
}

func (r *RedisStore) Save(ctx context.Context, slot string, s *story.SaveState) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	data, err := encode(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, redisKey(slot), data, 0).Err(); err != nil {
		r.logger.Error("Failed to save story", "slot", slot, "error", err)
		return fmt.Errorf("failed to save story: %w", err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, slot string) (*story.SaveState, error) {
	if err := validSlot(slot); err != nil {
		return nil, err
	}
	data, err := r.client.Get(ctx, redisKey(slot)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		r.logger.Error("Failed to load story", "slot", slot, "error", err)
		return nil, fmt.Errorf("failed to load story: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return decode(data)
}

func (r *RedisStore) Delete(ctx context.Context, slot string) error {
	if err := validSlot(slot); err != nil {
		return err
	}
	if err := r.client.Del(ctx, redisKey(slot)).Err(); err != nil {
		r.logger.Error("Failed to delete story", "slot", slot, "error", err)
		return fmt.Errorf("failed to delete story: %w", err)
	}
	return nil
}

func (r *RedisStore) Exists(ctx context.Context, slot string) (bool, error) {
	if err := validSlot(slot); err != nil {
		return false, err
	}
	n, err := r.client.Exists(ctx, redisKey(slot)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check story: %w", err)
	}
	return n > 0, nil
}
