// Package keylock provides named critical sections.
//
// A Locker serialises work that shares a key (for example every placement
// into one course) while letting unrelated keys proceed in parallel.
// MemoryLocker covers a single process; RedisLocker covers every process
// that talks to the same Redis.
package keylock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Locker obtains exclusive ownership of a key.
type Locker interface {
	// Acquire blocks until the key is held or ctx is done. ttl bounds how
	// long the lock survives a crashed holder; backends without expiry
	// ignore it. The returned release func is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// MemoryLocker implements Locker with one buffered channel per key.
// Entries are reference counted and removed once nobody holds or waits.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	sem  chan struct{}
	refs int
}

// NewMemoryLocker creates an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*entry)}
}

func (l *MemoryLocker) ref(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	return e
}

func (l *MemoryLocker) unref(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// Acquire blocks until key is free or ctx is done.
func (l *MemoryLocker) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	e := l.ref(key)

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, e)
		return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.sem
			l.unref(key, e)
		})
	}, nil
}

// Len returns the number of keys currently held or waited on.
func (l *MemoryLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// AcquireAll takes every key in order and returns one release func that
// frees them in reverse order. Callers must pass keys in a consistent
// order to avoid deadlocks.
func AcquireAll(ctx context.Context, l Locker, ttl time.Duration, keys ...string) (func(), error) {
	releases := make([]func(), 0, len(keys))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, k := range keys {
		rel, err := l.Acquire(ctx, k, ttl)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, rel)
	}
	return releaseAll, nil
}
