package metadata

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// HashClient is the part of the go-redis client used by RedisRepository.
// *redis.Client and *redis.ClusterClient satisfy it.
type HashClient interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
}

// RedisRepository stores all metadata of one client in a single redis hash.
// Apply issues at most one HSET and one HDEL; each is atomic on its own.
type RedisRepository struct {
	rdb HashClient
	key string
}

func NewRedisRepository(rdb HashClient, hashKey string) *RedisRepository {
	return &RedisRepository{rdb: rdb, key: hashKey}
}

func (r *RedisRepository) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.rdb.HGet(ctx, r.key, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return v, nil
}

func (r *RedisRepository) Set(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.HSet(ctx, r.key, key, value).Err(); err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *RedisRepository) Delete(ctx context.Context, key string) error {
	if err := r.rdb.HDel(ctx, r.key, key).Err(); err != nil {
		return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
	}
	return nil
}

func (r *RedisRepository) Apply(ctx context.Context, set map[string][]byte, remove []string) error {
	if len(set) > 0 {
		values := make([]interface{}, 0, len(set)*2)
		for _, k := range sortedKeys(set) {
			values = append(values, k, set[k])
		}
		if err := r.rdb.HSet(ctx, r.key, values...).Err(); err != nil {
			return fmt.Errorf("failed to apply metadata: %w", err)
		}
	}
	if len(remove) > 0 {
		if err := r.rdb.HDel(ctx, r.key, remove...).Err(); err != nil {
			return fmt.Errorf("failed to apply metadata: %w", err)
		}
	}
	return nil
}
