package appointment

import (
	"context"
	"sync"
)

// Locker guards the conflict-check-then-write critical section per slot key.
// The Redis implementation in internal/redis serves multi-instance
// deployments; KeyedMutex serves a single process.
type Locker interface {
	WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// KeyedMutex serializes critical sections per key within one process.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*entry)}
}

func (k *KeyedMutex) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}()

	return fn(ctx)
}
