package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

var errHeld = errors.New("lock held by another owner")

// releaseScript deletes the key only while it still carries our token, so a
// holder whose lease expired cannot release the next owner's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker backed by SET NX leases on a Redis server.
type Redis struct {
	client redis.UniversalClient
	prefix string
	poll   time.Duration
}

// NewRedis returns a Redis Locker. poll is the wait between attempts while
// the lock is held elsewhere.
func NewRedis(client redis.UniversalClient, poll time.Duration) *Redis {
	if poll <= 0 {
		poll = 50 * time.Millisecond
	}

	return &Redis{
		client: client,
		prefix: "lock:",
		poll:   poll,
	}
}

// Acquire polls until it stores a fresh token under key or ctx ends.
func (r *Redis) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	fk := r.prefix + key
	token := uuid.NewString()

	err := retry.Do(ctx, retry.NewConstant(r.poll), func(ctx context.Context) error {
		acquired, err := r.client.SetNX(ctx, fk, token, ttl).Result()
		if err != nil {
			return err
		}
		if !acquired {
			return retry.RetryableError(errHeld)
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotAcquired, key, ctxErr)
		}
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()

			if err := releaseScript.Run(rctx, r.client, []string{fk}, token).Err(); err != nil {
				slog.WarnContext(ctx, "failed to release lock", "key", key, "error", err)
			}
		})
	}, nil
}
