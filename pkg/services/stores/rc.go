package stores

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/liut/medilink/pkg/settings"
)

type RedisClient = redis.UniversalClient

const redisPingTimeout = time.Second * 3

var (
	rcOnce sync.Once
	rcu    RedisClient
	rcErr  error
)

// SgtRC start return a singleton instance of redis client
func SgtRC() (RedisClient, error) {
	rcOnce.Do(func() {
		rcu, rcErr = NewRedisClient(settings.Current.RedisURI)
	})

	return rcu, rcErr
}

// NewRedisClient fails only on a malformed uri. An unreachable server is
// logged, later commands fail and the history degrades softly.
func NewRedisClient(redisURI string) (RedisClient, error) {
	opt, err := redis.ParseURL(redisURI)
	if err != nil {
		logger().Infow("prase redisURI fail", "uri", redisURI, "err", err)
		return nil, err
	}
	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err = rc.Ping(ctx).Err(); err != nil {
		logger().Infow("ping redis fail", "addr", opt.Addr, "err", err)
	}
	return rc, nil
}

type redisKV struct {
	rc       RedisClient
	lifetime time.Duration
}

// NewRedisKV stores every slot as a plain string key, lifetime zero means no expiry
func NewRedisKV(rc RedisClient, lifetime time.Duration) KV {
	return &redisKV{rc: rc, lifetime: lifetime}
}

func (s *redisKV) Read(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rc.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *redisKV) Write(ctx context.Context, key string, value []byte) error {
	return s.rc.Set(ctx, key, value, s.lifetime).Err()
}

func (s *redisKV) Delete(ctx context.Context, key string) error {
	return s.rc.Del(ctx, key).Err()
}
