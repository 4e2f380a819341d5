package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/autoparts-inventory/internal/core/domain"
	"github.com/rl1809/autoparts-inventory/internal/port"
)

const (
	idempotencyKeyPrefix     = "idempotency:"
	defaultIdempotencyKeyTTL = 24 * time.Hour
)

type RedisAdapter struct {
	client         *redis.Client
	idempotencyTTL time.Duration
}

// NewRedisAdapter wraps client. A non-positive idempotencyTTL falls back to 24h.
func NewRedisAdapter(client *redis.Client, idempotencyTTL time.Duration) *RedisAdapter {
	if idempotencyTTL <= 0 {
		idempotencyTTL = defaultIdempotencyKeyTTL
	}
	return &RedisAdapter{client: client, idempotencyTTL: idempotencyTTL}
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, r.idempotencyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}

func (r *RedisAdapter) GetChangeSet(ctx context.Context, key string) (domain.ChangeSet, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var cs domain.ChangeSet
	if err := json.Unmarshal(data, &cs); err != nil {
		return nil, false, fmt.Errorf("decode cached change set: %w", err)
	}
	return cs, true, nil
}

func (r *RedisAdapter) SetChangeSet(ctx context.Context, key string, cs domain.ChangeSet, ttl time.Duration) error {
	if cs == nil {
		cs = domain.ChangeSet{}
	}
	data, err := json.Marshal(cs)
	if err != nil {
		return fmt.Errorf("encode change set: %w", err)
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

var _ port.CacheRepository = (*RedisAdapter)(nil)
