package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "subsbridge:lock:"

// releaseScript deletes the lock only if this holder still owns it, so a
// holder that outlived its TTL cannot release a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

// RedisLockerOption configures the Redis locker.
type RedisLockerOption func(*redisLocker)

// WithLockTTL caps how long a crashed holder can block other processes.
func WithLockTTL(ttl time.Duration) RedisLockerOption {
	return func(l *redisLocker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithLockRetryInterval sets the polling interval while waiting for a held
// lock.
func WithLockRetryInterval(d time.Duration) RedisLockerOption {
	return func(l *redisLocker) {
		if d > 0 {
			l.retry = d
		}
	}
}

// NewRedisLocker returns a Locker backed by Redis SET NX with a TTL, for
// deployments where webhook deliveries land on different processes.
func NewRedisLocker(client *redis.Client, opts ...RedisLockerOption) Locker {
	l := &redisLocker{
		client: client,
		ttl:    30 * time.Second,
		retry:  50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := lockKeyPrefix + key
	holder := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, holder, l.ttl).Result()
		if err != nil {
			return nil, errors.Join(ErrLockNotAcquired, err)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client, []string{redisKey}, holder).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockNotAcquired, ctx.Err())
		case <-time.After(l.retry):
		}
	}
}
