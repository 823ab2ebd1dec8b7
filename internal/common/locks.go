package common

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/corvusfin/corvus/internal/models"
)

// keyLock is one table entry: a single-slot semaphore plus the number of
// holders and waiters currently pinning it. An entry is evicted when its last
// pin drops, so the table stays bounded by concurrent activity rather than
// growing with every key ever locked.
type keyLock struct {
	ch   chan struct{}
	refs int
}

// KeyedLocks serializes mutations per logical record key. Multi-key
// acquisition always proceeds in sorted key order so two writers touching
// the same set of records can never deadlock each other.
type KeyedLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

// NewKeyedLocks creates an empty lock table.
func NewKeyedLocks() *KeyedLocks {
	return &KeyedLocks{
		locks: make(map[string]*keyLock),
	}
}

// pin fetches or creates the entry for key and counts the caller against it.
func (k *KeyedLocks) pin(key string) *keyLock {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	return l
}

// unpin drops the caller's count; the last pin removes the entry.
func (k *KeyedLocks) unpin(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.locks[key]
	if !ok {
		return
	}
	l.refs--
	if l.refs <= 0 {
		delete(k.locks, key)
	}
}

// Acquire takes the locks for all keys, waiting at most wait in total. On
// success it returns a release function the caller must invoke. If the wait
// elapses the partial acquisition is rolled back and a ConflictError names
// the contended key.
func (k *KeyedLocks) Acquire(ctx context.Context, wait time.Duration, keys ...string) (func(), error) {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	type held struct {
		key string
		l   *keyLock
	}
	var acquired []held
	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			<-acquired[i].l.ch
			k.unpin(acquired[i].key)
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		l := k.pin(key)
		select {
		case l.ch <- struct{}{}:
			acquired = append(acquired, held{key: key, l: l})
		case <-timer.C:
			k.unpin(key)
			release()
			return nil, &models.ConflictError{Key: key}
		case <-ctx.Done():
			k.unpin(key)
			release()
			return nil, ctx.Err()
		}
	}

	return release, nil
}
