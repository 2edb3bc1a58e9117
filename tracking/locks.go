package tracking

import (
	"context"
	"sort"
	"sync"
)

// LockKey names one serialization domain: a job, or a worker's stock of one product.
type LockKey string

func JobLock(id JobID) LockKey { return LockKey("job:" + string(id)) }

func InventoryLock(worker WorkerID, product ProductID) LockKey {
	return LockKey("inventory:" + string(worker) + ":" + string(product))
}

// KeyedLocks hands out one mutex per key. Callers holding different keys
// never wait on each other. Entries are dropped when no one holds or waits.
type KeyedLocks struct {
	mu    sync.Mutex
	locks map[LockKey]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

func NewKeyedLocks() *KeyedLocks {
	return &KeyedLocks{locks: make(map[LockKey]*keyedLock)}
}

// Acquire locks every key in sorted order and returns the release func.
// Duplicates are ignored. If ctx ends first, anything already taken is released.
func (k *KeyedLocks) Acquire(ctx context.Context, keys ...LockKey) (func(), error) {
	keys = normalizeKeys(keys)

	held := make([]LockKey, 0, len(keys))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			k.unlock(held[i])
		}
	}

	for _, key := range keys {
		if err := k.lock(ctx, key); err != nil {
			release()
			return nil, err
		}
		held = append(held, key)
	}
	return release, nil
}

func (k *KeyedLocks) lock(ctx context.Context, key LockKey) error {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
		return ctx.Err()
	}
}

func (k *KeyedLocks) unlock(key LockKey) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		return
	}
	<-l.ch
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

// Len returns the number of keys currently held or waited on.
func (k *KeyedLocks) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func normalizeKeys(keys []LockKey) []LockKey {
	out := make([]LockKey, 0, len(keys))
	seen := make(map[LockKey]bool, len(keys))
	for _, key := range keys {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
