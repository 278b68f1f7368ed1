package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLockOrder(t *testing.T) {
	got := lockOrder([]string{"b", "a", "b", "c"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestKeyedMutexReleasesSlots(t *testing.T) {
	k := NewKeyedMutex()
	unlock, err := k.Lock(context.Background(), "x", "y", "x")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if k.size() != 2 {
		t.Fatalf("slots=%d want=2", k.size())
	}
	unlock()
	unlock() // second call is a no-op
	if k.size() != 0 {
		t.Fatalf("slots=%d want=0", k.size())
	}
}

func TestKeyedMutexCancelledWaiter(t *testing.T) {
	k := NewKeyedMutex()
	unlock, err := k.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	// "a" is busy; "b" is taken first and must be handed back on failure.
	if _, err := k.Lock(ctx, "b", "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want DeadlineExceeded, got %v", err)
	}
	if k.size() != 1 {
		t.Fatalf("slots=%d want=1", k.size())
	}
	unlock()
	if k.size() != 0 {
		t.Fatalf("slots=%d want=0", k.size())
	}
}

func TestKeyedMutexHandsOverToWaiter(t *testing.T) {
	k := NewKeyedMutex()
	unlock, err := k.Lock(context.Background(), "a")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	acquired := make(chan func())
	go func() {
		u, err := k.Lock(context.Background(), "a")
		if err != nil {
			t.Errorf("waiter: %v", err)
			close(acquired)
			return
		}
		acquired <- u
	}()

	select {
	case <-acquired:
		t.Fatal("waiter acquired a held lock")
	case <-time.After(20 * time.Millisecond):
	}
	unlock()
	select {
	case u := <-acquired:
		if u != nil {
			u()
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisLockerAcquireRelease(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewRedisLocker(rdb, "", time.Second)

	unlock, err := l.Lock(context.Background(), "B", "A")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if !mr.Exists("lock:account:A") || !mr.Exists("lock:account:B") {
		t.Fatalf("lease keys missing: %v", mr.Keys())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if _, err := l.Lock(ctx, "A"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want DeadlineExceeded while held, got %v", err)
	}

	unlock()
	if mr.Exists("lock:account:A") || mr.Exists("lock:account:B") {
		t.Fatalf("leases not released: %v", mr.Keys())
	}
}

func TestRedisLockerKeepsForeignLease(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewRedisLocker(rdb, "test", time.Second)

	unlock, err := l.Lock(context.Background(), "A")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	// Simulate our lease expiring and another instance taking the key.
	if err := mr.Set("test:A", "someone-else"); err != nil {
		t.Fatalf("set: %v", err)
	}
	unlock()
	got, err := mr.Get("test:A")
	if err != nil || got != "someone-else" {
		t.Fatalf("foreign lease removed: value=%q err=%v", got, err)
	}
}

func TestRedisLockerUnavailable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	mr.Close()
	l := NewRedisLocker(rdb, "", time.Second)
	if _, err := l.Lock(context.Background(), "A"); err == nil {
		t.Fatal("expected an error with redis down")
	}
}
