package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"suppliersync/internal/config"
	"suppliersync/internal/models"

	"github.com/redis/go-redis/v9"
)

type RedisTokenRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisTokenRepository(client *redis.Client, ttl time.Duration) *RedisTokenRepository {
	if ttl <= 0 {
		ttl = time.Duration(models.DefaultTokenTTL) * time.Second
	}
	return &RedisTokenRepository{
		client: client,
		ttl:    ttl,
	}
}

func tokenKey(supplierCode string) string {
	return fmt.Sprintf("supplier_token:%s", supplierCode)
}

func (r *RedisTokenRepository) GetToken(ctx context.Context, supplierCode string) (*models.SupplierToken, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, tokenKey(supplierCode)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token from redis: %w", err)
	}

	var token models.SupplierToken
	if err := json.Unmarshal([]byte(val), &token); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token: %w", err)
	}

	return &token, nil
}

func (r *RedisTokenRepository) SetToken(ctx context.Context, token *models.SupplierToken) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	ttl := r.ttl
	if !token.ExpiresAt.IsZero() {
		if until := time.Until(token.ExpiresAt); until > 0 && until < ttl {
			ttl = until
		}
	}

	if err := r.client.Set(ctx, tokenKey(token.SupplierCode), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set token in redis: %w", err)
	}

	return nil
}

func (r *RedisTokenRepository) ClearToken(ctx context.Context, supplierCode string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, tokenKey(supplierCode)).Err(); err != nil {
		return fmt.Errorf("failed to delete token from redis: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
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
