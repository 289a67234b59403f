package keylock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newTestRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLocker(client, "lock:", zap.NewNop()), mr
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	l, mr := newTestRedisLocker(t)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "course:1", time.Second)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !mr.Exists("lock:course:1") {
		t.Fatal("expected lock key to exist while held")
	}

	release()
	release()
	if mr.Exists("lock:course:1") {
		t.Fatal("expected lock key to be removed after release")
	}
}

func TestRedisLocker_BlocksWhileHeld(t *testing.T) {
	l, _ := newTestRedisLocker(t)

	release, err := l.Acquire(context.Background(), "course:1", 5*time.Second)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	if _, err := l.Acquire(ctx, "course:1", 5*time.Second); err == nil {
		t.Fatal("expected second Acquire to time out while lock is held")
	}
}

func TestRedisLocker_WaiterProceedsAfterRelease(t *testing.T) {
	l, _ := newTestRedisLocker(t)

	release, err := l.Acquire(context.Background(), "k", 5*time.Second)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		rel, err := l.Acquire(ctx, "k", 5*time.Second)
		if err == nil {
			rel()
		}
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	release()

	if err := <-done; err != nil {
		t.Fatalf("waiter failed to acquire after release: %v", err)
	}
}

func TestRedisLocker_ExpiredHolderCannotReleaseNewOwner(t *testing.T) {
	l, mr := newTestRedisLocker(t)
	ctx := context.Background()

	stale, err := l.Acquire(ctx, "k", time.Second)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	mr.FastForward(2 * time.Second)

	fresh, err := l.Acquire(ctx, "k", 5*time.Second)
	if err != nil {
		t.Fatalf("Acquire after expiry failed: %v", err)
	}
	defer fresh()

	stale()
	if !mr.Exists("lock:k") {
		t.Fatal("stale release must not delete the new owner's lock")
	}
}

func TestRedisLocker_RequiresTTL(t *testing.T) {
	l, _ := newTestRedisLocker(t)
	if _, err := l.Acquire(context.Background(), "k", 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestRedisLocker_Ping(t *testing.T) {
	l, mr := newTestRedisLocker(t)
	if err := l.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	mr.Close()
	if err := l.Ping(context.Background()); err == nil {
		t.Fatal("expected Ping to fail after server stopped")
	}
}
