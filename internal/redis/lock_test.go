package redisclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisLocker_KeysAreIndependent(t *testing.T) {
	mr, rdb := newTestRedis(t)
	locker := NewRedisLocker(rdb, time.Second)
	ctx := context.Background()

	err := locker.WithLock(ctx, "doctor:1:2030-01-07", func(ctx context.Context) error {
		assert.True(t, mr.Exists("lock:doctor:1:2030-01-07"))
		return locker.WithLock(ctx, "doctor:1:2030-01-08", func(context.Context) error { return nil })
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("lock:doctor:1:2030-01-07"))
	assert.False(t, mr.Exists("lock:doctor:1:2030-01-08"))
}

func TestRedisLocker_WaitsForRelease(t *testing.T) {
	mr, rdb := newTestRedis(t)
	locker := NewRedisLocker(rdb, time.Second)
	require.NoError(t, mr.Set("lock:k", "other-holder"))

	go func() {
		time.Sleep(30 * time.Millisecond)
		mr.Del("lock:k")
	}()

	start := time.Now()
	ran := false
	err := locker.WithLock(context.Background(), "k", func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.False(t, mr.Exists("lock:k"))
}

func TestRedisLocker_GivesUpAfterWait(t *testing.T) {
	mr, rdb := newTestRedis(t)
	locker := NewRedisLocker(rdb, 40*time.Millisecond)
	require.NoError(t, mr.Set("lock:k", "other-holder"))

	err := locker.WithLock(context.Background(), "k", func(context.Context) error {
		t.Fatal("held lock must not be acquired")
		return nil
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	v, err := mr.Get("lock:k")
	require.NoError(t, err)
	assert.Equal(t, "other-holder", v)
}

func TestRedisLocker_ContextCancelledWhileWaiting(t *testing.T) {
	mr, rdb := newTestRedis(t)
	locker := NewRedisLocker(rdb, time.Second)
	require.NoError(t, mr.Set("lock:k", "other-holder"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := locker.WithLock(ctx, "k", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrLockNotAcquired)
}

func TestRedisLocker_ReleasesOnError(t *testing.T) {
	mr, rdb := newTestRedis(t)
	locker := NewRedisLocker(rdb, time.Second)
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "k", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:k"))
}

func TestRedisLocker_DoesNotReleaseForeignToken(t *testing.T) {
	mr, rdb := newTestRedis(t)
	locker := NewRedisLocker(rdb, time.Second)

	err := locker.WithLock(context.Background(), "k", func(context.Context) error {
		// simulate expiry and takeover by another holder
		require.NoError(t, mr.Set("lock:k", "someone-else"))
		return nil
	})
	require.NoError(t, err)

	v, err := mr.Get("lock:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}

func TestLocalLocker_Serialises(t *testing.T) {
	locker := NewLocalLocker()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locker.WithLock(context.Background(), "same", func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, locker.locks)
}

func TestLocalLocker_ContextCancelled(t *testing.T) {
	locker := NewLocalLocker()
	held := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = locker.WithLock(context.Background(), "k", func(context.Context) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := locker.WithLock(ctx, "k", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(done)
}
