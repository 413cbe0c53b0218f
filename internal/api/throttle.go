package api

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Throttle counts failed authentications per client. It is advisory and
// sits in front of the core; the auth gate never consults it.
type Throttle interface {
	Blocked(ctx context.Context, key string) (bool, error)
	Fail(ctx context.Context, key string) error
}

type NoopThrottle struct{}

func (NoopThrottle) Blocked(context.Context, string) (bool, error) { return false, nil }
func (NoopThrottle) Fail(context.Context, string) error            { return nil }

// RedisThrottle keeps one counter per client that expires window after the
// first failure in the window.
type RedisThrottle struct {
	client      redis.UniversalClient
	maxFailures int64
	window      time.Duration
	prefix      string
}

func NewRedisThrottle(client redis.UniversalClient, maxFailures int64, window time.Duration) *RedisThrottle {
	return &RedisThrottle{
		client:      client,
		maxFailures: maxFailures,
		window:      window,
		prefix:      "ledger:authfail:",
	}
}

func (t *RedisThrottle) Blocked(ctx context.Context, key string) (bool, error) {
	n, err := t.client.Get(ctx, t.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n >= t.maxFailures, nil
}

func (t *RedisThrottle) Fail(ctx context.Context, key string) error {
	k := t.prefix + key
	n, err := t.client.Incr(ctx, k).Result()
	if err != nil {
		return err
	}
	if n == 1 {
		return t.client.Expire(ctx, k, t.window).Err()
	}
	return nil
}
