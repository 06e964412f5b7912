package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	coreconfig "github.com/intrening/pizzabot/core/config"
)

type redisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and returns a Store backed by it.
func NewRedisStore(ctx context.Context, cfg coreconfig.RedisConfig) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisStore{client: client}, nil
}

func sessionKey(chatID int64) string {
	return fmt.Sprintf("session:%d", chatID)
}

// Get returns the state for a chat or ErrNotFound.
func (r *redisStore) Get(ctx context.Context, chatID int64) (State, error) {
	val, err := r.client.Get(ctx, sessionKey(chatID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get: %w", err)
	}
	return State(val), nil
}

// Set updates the state for a chat. Sessions do not expire; idle chats
// simply stop receiving events.
func (r *redisStore) Set(ctx context.Context, chatID int64, st State) error {
	if err := r.client.Set(ctx, sessionKey(chatID), string(st), 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
