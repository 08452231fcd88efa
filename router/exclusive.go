package router

import (
	"context"
	"sync"
)

// KeyFunc derives the exclusivity key for a message. Messages mapping to
// the same key are handled one at a time; messages with distinct keys
// are handled concurrently.
type KeyFunc func(msg Message) string

// keyedLock is a mutex with a count of holders and waiters, kept in a
// lockTable entry so the entry can be removed once nobody needs it.
type keyedLock struct {
	mu      sync.Mutex
	waiters int
}

// lockTable maps derived keys to their locks. Locks are created lazily
// on first acquisition and garbage collected when the last waiter
// releases, so the table never grows beyond the number of keys currently
// being processed or waited on.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*keyedLock)}
}

func (t *lockTable) acquire(key string) *keyedLock {
	t.mu.Lock()
	kl, ok := t.locks[key]
	if !ok {
		kl = &keyedLock{}
		t.locks[key] = kl
	}
	kl.waiters++
	t.mu.Unlock()

	kl.mu.Lock()
	return kl
}

func (t *lockTable) release(key string, kl *keyedLock) {
	t.mu.Lock()
	kl.waiters--
	if kl.waiters == 0 {
		// The entry MUST be removed before the lock is released,
		// otherwise a concurrent acquire could fetch the entry we are
		// about to orphan.
		delete(t.locks, key)
	}
	t.mu.Unlock()

	kl.mu.Unlock()
}

// size reports the number of live lock entries. Used by tests to verify
// the table does not grow unboundedly.
func (t *lockTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

// Exclusively wraps a handler to prevent concurrent processing of
// messages that share a derived key, e.g. the same entity UUID. Two
// concurrently delivered messages about the same logical entity are
// serialized so read-modify-write handlers cannot lose updates; messages
// for distinct keys proceed concurrently.
//
// Each call to Exclusively owns its own lock table, so two handlers
// wrapped separately do not contend with each other even when their
// key functions collide.
func Exclusively(key KeyFunc, handler Handler) Handler {
	table := newLockTable()

	return func(ctx context.Context, msg Message) error {
		k := key(msg)
		kl := table.acquire(k)
		defer table.release(k, kl)
		return handler(ctx, msg)
	}
}
