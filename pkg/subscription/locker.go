package subscription

import (
	"context"
	"sync"
)

// Locker serializes reconciliations of the same subscriber. The provider
// delivers webhooks at least once and a scheduled charge can race its own
// confirming webhook, so the duplicate-registration check must run inside
// the locked section.
type Locker interface {
	// Lock acquires the lock for key, blocking until acquired or ctx ends.
	// The returned function releases the lock.
	Lock(ctx context.Context, key string) (func(), error)
}

// memoryLocker is an in-process keyed lock for single-node deployments and
// tests. Multi-node deployments use the Redis locker instead.
type memoryLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewMemoryLocker returns an in-process Locker.
func NewMemoryLocker() Locker {
	return &memoryLocker{slots: make(map[string]chan struct{})}
}

func (l *memoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
