package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"FinValue/internal/domain/repository"
)

var _ repository.RateLimiter = (*RedisLimiter)(nil)

// RedisLimiter is a fixed one-second window shared by every process using the same Redis.
type RedisLimiter struct {
	rdb    redis.UniversalClient
	limit  int64
	prefix string
	now    func() time.Time
}

type RedisOption func(*RedisLimiter)

func WithPrefix(prefix string) RedisOption {
	return func(r *RedisLimiter) { r.prefix = prefix }
}

func NewRedis(rdb redis.UniversalClient, perSecond int, opts ...RedisOption) *RedisLimiter {
	if perSecond < 1 {
		perSecond = 1
	}
	r := &RedisLimiter{rdb: rdb, limit: int64(perSecond), prefix: "finvalue:ratelimit:", now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	window := r.now().Unix()
	k := fmt.Sprintf("%s%s:%d", r.prefix, key, window)

	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, 2*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("ratelimit incr: %w", err)
	}
	return incr.Val() <= r.limit, nil
}
