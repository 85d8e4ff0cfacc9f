package port

import (
	"context"
	"errors"
	"time"
)

var ErrLockNotObtained = errors.New("lock not obtained")

type IdempotencyStore interface {
	// SetIdempotency claims key, returns false if it is already claimed
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ReleaseIdempotency frees a claimed key so a failed request can be retried
	ReleaseIdempotency(ctx context.Context, key string) error
}

type Locker interface {
	// Acquire blocks other holders of key until release is called or ttl
	// passes. It fails with ErrLockNotObtained when key is already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
