package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store: операции Redis, которыми пользуются блокировки.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// GoRedisStore адаптирует go-redis клиент к Store.
type GoRedisStore struct {
	client redis.UniversalClient
}

func NewGoRedisStore(client redis.UniversalClient) *GoRedisStore {
	return &GoRedisStore{client: client}
}

// NewGoRedisStoreFromURL разбирает redis:// URL и проверяет соединение.
func NewGoRedisStoreFromURL(ctx context.Context, url string) (*GoRedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &GoRedisStore{client: client}, nil
}

func (s *GoRedisStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s *GoRedisStore) Get(ctx context.Context, key string) (string, error) {
	return s.client.Get(ctx, key).Result()
}

func (s *GoRedisStore) Del(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

func (s *GoRedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *GoRedisStore) Close() error {
	return s.client.Close()
}
