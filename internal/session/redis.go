package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, token, intentID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, sessionKey(token), intentID, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// GetAndDelete uses GETDEL so two concurrent callbacks cannot both read the entry.
func (s *RedisStore) GetAndDelete(ctx context.Context, token string) (string, error) {
	intentID, err := s.client.GetDel(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrSessionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis getdel failed: %w", err)
	}
	return intentID, nil
}

func sessionKey(token string) string {
	return fmt.Sprintf("checkout:session:%s", token)
}
