package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL   = 30 * time.Second
	retryBackoff = 25 * time.Millisecond
)

// releaseScript deletes a key only if it still holds our token, so an expired lock
// re-acquired by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a cluster-wide Locker built on SET NX PX. Keys expire after ttl if the holder dies.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{
		client: client,
		ttl:    ttl,
		prefix: "lock:",
	}
}

func (r *Redis) Acquire(ctx context.Context, keys []string) (Release, error) {
	keys = normalize(keys)
	token := uuid.NewString()
	held := make([]string, 0, len(keys))

	unlock := func(ctx context.Context) error {
		var errs []error
		for i := len(held) - 1; i >= 0; i-- {
			if err := releaseScript.Run(ctx, r.client, []string{held[i]}, token).Err(); err != nil {
				errs = append(errs, err)
			}
		}
		held = nil
		return errors.Join(errs...)
	}

	for _, key := range keys {
		full := r.prefix + key
		if err := r.acquireOne(ctx, full, token); err != nil {
			// Release what we hold with a fresh context; ctx may already be done.
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			unlock(releaseCtx)
			cancel()
			return nil, err
		}
		held = append(held, full)
	}

	return unlock, nil
}

func (r *Redis) acquireOne(ctx context.Context, key, token string) error {
	ticker := time.NewTicker(retryBackoff)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.Join(ErrNotAcquired, ctx.Err())
		case <-ticker.C:
		}
	}
}
