package lock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"resource-manager/internal/lock"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceKeys(t *testing.T) {
	assert.Equal(t, []string{"resource:1", "resource:12", "resource:3"}, lock.ResourceKeys([]int{3, 12, 1, 3}))
	assert.Empty(t, lock.ResourceKeys(nil))
}

func newRedisLocker(t *testing.T, ttl time.Duration) (*lock.Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return lock.NewRedis(client, ttl), mr
}

func lockers(t *testing.T) map[string]lock.Locker {
	redisLocker, _ := newRedisLocker(t, time.Minute)
	return map[string]lock.Locker{
		"local": lock.NewLocal(),
		"redis": redisLocker,
	}
}

func TestLocker_MutualExclusion(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			var inside, maxInside int32
			var wg sync.WaitGroup

			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()

					release, err := locker.Acquire(ctx, lock.ResourceKeys([]int{1, 2}))
					if !assert.NoError(t, err) {
						return
					}
					n := atomic.AddInt32(&inside, 1)
					for {
						m := atomic.LoadInt32(&maxInside)
						if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
							break
						}
					}
					time.Sleep(5 * time.Millisecond)
					atomic.AddInt32(&inside, -1)
					assert.NoError(t, release(context.Background()))
				}()
			}
			wg.Wait()

			assert.EqualValues(t, 1, maxInside)
		})
	}
}

func TestLocker_DisjointKeysDoNotBlock(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, err := locker.Acquire(ctx, lock.ResourceKeys([]int{1}))
			require.NoError(t, err)
			defer first(ctx)

			timeout, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			second, err := locker.Acquire(timeout, lock.ResourceKeys([]int{2}))
			require.NoError(t, err)
			require.NoError(t, second(ctx))
		})
	}
}

func TestLocker_ContextCancelled(t *testing.T) {
	for name, locker := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			held, err := locker.Acquire(ctx, lock.ResourceKeys([]int{5}))
			require.NoError(t, err)

			timeout, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			_, err = locker.Acquire(timeout, lock.ResourceKeys([]int{4, 5}))
			assert.ErrorIs(t, err, lock.ErrNotAcquired)

			require.NoError(t, held(ctx))

			// key 4 must have been given back when the second Acquire gave up
			again, err := locker.Acquire(ctx, lock.ResourceKeys([]int{4, 5}))
			require.NoError(t, err)
			require.NoError(t, again(ctx))
		})
	}
}

func TestRedis_ExpiredLockIsNotReleasedByOldHolder(t *testing.T) {
	locker, mr := newRedisLocker(t, time.Second)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, []string{"resource:9"})
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := locker.Acquire(ctx, []string{"resource:9"})
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists("lock:resource:9"))

	require.NoError(t, fresh(ctx))
	assert.False(t, mr.Exists("lock:resource:9"))
}

func TestNoop(t *testing.T) {
	release, err := lock.Noop{}.Acquire(context.Background(), []string{"resource:1"})
	require.NoError(t, err)
	assert.NoError(t, release(context.Background()))
}

func TestLocal_ForgetsReleasedKeys(t *testing.T) {
	locker := lock.NewLocal()
	ctx := context.Background()

	for id := 1; id <= 50; id++ {
		release, err := locker.Acquire(ctx, lock.ResourceKeys([]int{id, id + 1000}))
		require.NoError(t, err)
		assert.Equal(t, 2, locker.Keys())
		require.NoError(t, release(ctx))
	}
	assert.Zero(t, locker.Keys())

	held, err := locker.Acquire(ctx, lock.ResourceKeys([]int{7}))
	require.NoError(t, err)

	timeout, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(timeout, lock.ResourceKeys([]int{6, 7}))
	assert.ErrorIs(t, err, lock.ErrNotAcquired)
	// the waiter gave up key 6 and its wait on key 7
	assert.Equal(t, 1, locker.Keys())

	require.NoError(t, held(ctx))
	assert.Zero(t, locker.Keys())
}
