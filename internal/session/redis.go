package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "vending:session:"

type redisStore struct {
	client *redis.Client
	logger *slog.Logger
	prefix string
}

// NewRedisStore connects to Redis and returns a Store backed by it.
func NewRedisStore(addr, password string, db int, logger *slog.Logger) (Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return NewRedisStoreFromClient(client, logger), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisStore{client: client, logger: logger, prefix: defaultRedisPrefix}
}

func (s *redisStore) SetIfAbsent(ctx context.Context, key string, payload []byte, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, payload, ttl).Result()
	if err != nil {
		s.logRedisError("setnx", err)
		return false, err
	}
	return ok, nil
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		s.logRedisError("get", err)
		return nil, err
	}
	return payload, nil
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		s.logRedisError("del", err)
		return err
	}
	return nil
}

func (s *redisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *redisStore) Close() {
	if s.client != nil {
		_ = s.client.Close()
	}
}

func (s *redisStore) logRedisError(op string, err error) {
	s.logger.Error("redis session store error", "op", op, "error", err)
}
