package chatsrv

import (
	"context"
	"slices"
	"sync"
)

// identityLocks serializes work per identity in arrival order. Each identity
// has a queue of waiters; the head holds the lock and passes it to the next
// waiter on release. Queues are forgotten once empty.
type identityLocks struct {
	mu     sync.Mutex
	queues map[string][]chan struct{}
}

func newIdentityLocks() *identityLocks {
	return &identityLocks{queues: make(map[string][]chan struct{})}
}

// lock joins identity's queue and waits for its turn. If ctx ends first the
// waiter leaves the queue and ctx's error is returned.
func (l *identityLocks) lock(ctx context.Context, identity string) (func(), error) {
	turn := make(chan struct{})

	l.mu.Lock()
	q := append(l.queues[identity], turn)
	l.queues[identity] = q
	if len(q) == 1 {
		close(turn)
	}
	l.mu.Unlock()

	select {
	case <-turn:
		var once sync.Once
		return func() { once.Do(func() { l.release(identity, turn) }) }, nil
	case <-ctx.Done():
		l.release(identity, turn)
		return nil, ctx.Err()
	}
}

func (l *identityLocks) release(identity string, turn chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	q := l.queues[identity]
	i := slices.Index(q, turn)
	if i < 0 {
		return
	}
	q = slices.Delete(q, i, i+1)
	if len(q) == 0 {
		delete(l.queues, identity)
		return
	}
	l.queues[identity] = q
	// Removing the head hands the lock on. A turn granted to a waiter that
	// gave up is passed along the same way.
	if i == 0 {
		close(q[0])
	}
}

func (l *identityLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queues)
}
