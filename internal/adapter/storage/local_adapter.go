package storage

import (
	"context"
	"sync"
	"time"

	"github.com/waleedtradee5-svg/pharmacy-management-system/internal/port"
)

// LocalAdapter provides idempotency keys and locks for a single process. It
// stands in for RedisAdapter when no Redis is configured.
type LocalAdapter struct {
	mu        sync.Mutex
	keys      map[string]time.Time
	locks     map[string]time.Time
	now       func() time.Time
	nextSweep time.Time
}

const localSweepInterval = time.Minute

func NewLocalAdapter() *LocalAdapter {
	return &LocalAdapter{
		keys:  map[string]time.Time{},
		locks: map[string]time.Time{},
		now:   time.Now,
	}
}

func (l *LocalAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	if exp, ok := l.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	l.keys[key] = now.Add(idempotencyKeyTTL)
	return true, nil
}

// sweep drops expired keys and locks, at most once per localSweepInterval.
// Callers hold l.mu.
func (l *LocalAdapter) sweep(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for k, exp := range l.keys {
		if !now.Before(exp) {
			delete(l.keys, k)
		}
	}
	for k, exp := range l.locks {
		if !now.Before(exp) {
			delete(l.locks, k)
		}
	}
	l.nextSweep = now.Add(localSweepInterval)
}

func (l *LocalAdapter) ReleaseIdempotency(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.keys, key)
	return nil
}

func (l *LocalAdapter) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if exp, ok := l.locks[key]; ok && now.Before(exp) {
		return nil, port.ErrLockNotObtained
	}
	exp := now.Add(ttl)
	l.locks[key] = exp

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			// a holder whose ttl lapsed must not free a newer holder's lock
			if l.locks[key].Equal(exp) {
				delete(l.locks, key)
			}
		})
	}, nil
}
