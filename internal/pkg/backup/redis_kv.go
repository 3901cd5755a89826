package backup

import (
	"context"

	redisc "github.com/willvault/core/internal/pkg/redis"
)

// RedisKV backs the channel with the application redis instance. Snapshots
// never expire: an unsaved payload must outlive any outage.
type RedisKV struct {
	rc *redisc.Client
}

func NewRedisKV(rc *redisc.Client) *RedisKV { return &RedisKV{rc: rc} }

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return r.rc.Set(ctx, key, value, 0)
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	return r.rc.Get(ctx, key)
}

func (r *RedisKV) Del(ctx context.Context, key string) error {
	return r.rc.Del(ctx, key)
}
