package storage

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/port"
)

const (
	idempotencyKeyPrefix = "idem:"
	lockKeyPrefix        = "lock:"
	idempotencyKeyTTL    = 24 * time.Hour
)

type RedisAdapter struct {
	client *redis.Client
	locker *redislock.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{
		client: client,
		locker: redislock.New(client),
	}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

// Acquire does not retry; a held lock fails fast with port.ErrLockNotObtained.
func (r *RedisAdapter) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lock, err := r.locker.Obtain(ctx, lockKeyPrefix+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, port.ErrLockNotObtained
	}
	if err != nil {
		return nil, err
	}

	return func() {
		// the lock may have expired already; nothing to do then
		_ = lock.Release(context.Background())
	}, nil
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
