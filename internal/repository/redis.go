package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"assetbook/internal/config"

	"github.com/redis/go-redis/v9"
)

var ErrNoRedis = errors.New("redis client is not configured")

const pingTimeout = 3 * time.Second

// NewRedisClient создает клиент из секции redis конфига
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// RedisStore is the shared QuotaStore used when several API instances run
// against one redis. Keys look like <prefix>:<kind>:<key>.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(parts ...string) string {
	return r.prefix + ":" + strings.Join(parts, ":")
}

// CheckRateLimit is a fixed-window counter. The first hit in a window creates
// the key with the window as TTL, later hits only increment it.
func (r *RedisStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, ErrNoRedis
	}

	k := r.key("quota", key)
	var hits *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.SetNX(ctx, k, 0, window)
		hits = p.Incr(ctx, k)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("count request %s: %w", key, err)
	}
	return hits.Val() <= int64(limit), nil
}

// MarkOnce reports true only for the first caller within ttl.
func (r *RedisStore) MarkOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.client == nil {
		return false, ErrNoRedis
	}
	first, err := r.client.SetNX(ctx, r.key("mark", key), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set marker %s: %w", key, err)
	}
	return first, nil
}

// Ping проверяет соединение
func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return ErrNoRedis
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client == nil {
		return nil
	}
	return client.Close()
}
