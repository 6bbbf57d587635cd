//go:build integration

package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestRedis_MutualExclusion(t *testing.T) {
	l := NewRedis(newRedisClient(t), 5*time.Millisecond)

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			release, err := l.Acquire(context.Background(), "account:bob", 5*time.Second)
			if !assert.NoError(t, err) {
				return
			}
			defer release()

			n := inside.Add(1)
			for {
				seen := maxSeen.Load()
				if n <= seen || maxSeen.CompareAndSwap(seen, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestRedis_ExpiredLeaseIsNotReleasedByOldHolder(t *testing.T) {
	client := newRedisClient(t)
	l := NewRedis(client, 5*time.Millisecond)
	ctx := context.Background()

	releaseOld, err := l.Acquire(ctx, "k", 50*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	releaseNew, err := l.Acquire(ctx, "k", 5*time.Second)
	require.NoError(t, err)
	defer releaseNew()

	releaseOld()

	exists, err := client.Exists(ctx, "lock:k").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)
}

func TestRedis_ContextEndsWhileWaiting(t *testing.T) {
	l := NewRedis(newRedisClient(t), 5*time.Millisecond)

	release, err := l.Acquire(context.Background(), "k", 5*time.Second)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(ctx, "k", 5*time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)
}
