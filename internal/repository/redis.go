package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"listraksync/internal/config"

	"github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "listrak:token:"

// RedisTokenCache shares access tokens between worker processes.
type RedisTokenCache struct {
	client *redis.Client
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{client: client}
}

func (r *RedisTokenCache) GetToken(ctx context.Context, key string) (string, time.Duration, error) {
	if r.client == nil {
		return "", 0, fmt.Errorf("redis client is nil")
	}
	pipe := r.client.Pipeline()
	getCmd := pipe.Get(ctx, tokenKeyPrefix+key)
	ttlCmd := pipe.PTTL(ctx, tokenKeyPrefix+key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return "", 0, fmt.Errorf("failed to get token from redis: %w", err)
	}
	val, err := getCmd.Result()
	if errors.Is(err, redis.Nil) {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, fmt.Errorf("failed to get token from redis: %w", err)
	}
	// keys are always written with an expiry; anything else is not trusted
	ttl := ttlCmd.Val()
	if ttl <= 0 {
		return "", 0, nil
	}
	return val, ttl, nil
}

func (r *RedisTokenCache) DeleteToken(ctx context.Context, key string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, tokenKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete token from redis: %w", err)
	}
	return nil
}

func (r *RedisTokenCache) SetToken(ctx context.Context, key, token string, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, tokenKeyPrefix+key, token, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set token in redis: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
