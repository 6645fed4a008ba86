package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Dedup marca eventos ja processados com as chaves KeyDedup.
type Dedup struct{ C *redis.Client }

func (d Dedup) Seen(ctx context.Context, key string) (bool, error) {
	return Exists(ctx, d.C, key)
}

func (d Dedup) Marcar(ctx context.Context, key string) error {
	return d.C.Set(ctx, key, "1", TTLDedup).Err()
}
