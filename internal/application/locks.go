package application

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// KeyedLocker serialises work per string key. Lock acquires every key in
// sorted order so overlapping key sets cannot deadlock.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

// NewKeyedLocker returns an empty locker.
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyedLock)}
}

// Lock blocks until every key is held or ctx is done. The returned function
// releases all keys and must be called exactly once.
func (l *KeyedLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	if l == nil {
		return func() {}, nil
	}
	ordered := slices.Clone(keys)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	held := make([]string, 0, len(ordered))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			l.unlock(held[i])
		}
	}

	for _, key := range ordered {
		entry := l.acquire(key)
		select {
		case entry.ch <- struct{}{}:
			held = append(held, key)
		case <-ctx.Done():
			l.drop(key)
			release()
			return nil, fmt.Errorf("%w: waiting for %s: %v", ErrUnavailable, key, ctx.Err())
		}
	}
	return release, nil
}

func (l *KeyedLocker) acquire(key string) *keyedLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &keyedLock{ch: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	return entry
}

func (l *KeyedLocker) unlock(key string) {
	l.mu.Lock()
	entry := l.locks[key]
	l.mu.Unlock()
	<-entry.ch
	l.drop(key)
}

// drop releases a reference and forgets the key once nobody waits on it.
func (l *KeyedLocker) drop(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := l.locks[key]
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
}

func roomDateKey(floor, room, date string) string {
	return "room:" + floor + "/" + room + "@" + date
}

func personKey(id string) string {
	return "person:" + id
}

func reservationKey(id string) string {
	return "reservation:" + id
}
