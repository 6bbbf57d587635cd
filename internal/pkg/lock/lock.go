// Package lock provides mutual exclusion keyed by string, either inside one
// process or across processes sharing a Redis server.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned when the lock could not be taken before the
// context ended.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker hands out exclusive locks by key.
type Locker interface {
	// Acquire blocks until the lock for key is held or ctx ends. ttl bounds how
	// long a lock survives a holder that never releases it; implementations
	// that cannot lose a holder may ignore it. The returned release func is
	// safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
