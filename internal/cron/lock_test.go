package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedisStore struct {
	values map[string]string
}

func newFakeRedisStore() *fakeRedisStore {
	return &fakeRedisStore{values: map[string]string{}}
}

func (f *fakeRedisStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeRedisStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeRedisStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func TestRedisLockAcquireAndRelease(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "worker:lock", time.Minute)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}
	ctx := context.Background()

	ok, err := lock.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Fatalf("expected to acquire free lock")
	}
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok := store.values["worker:lock"]; ok {
		t.Fatalf("expected lock key deleted on release")
	}
}

func TestRedisLockSecondAcquireBlocked(t *testing.T) {
	store := newFakeRedisStore()
	first, err := NewRedisLock(store, "worker:lock", time.Minute)
	if err != nil {
		t.Fatalf("construct first lock: %v", err)
	}
	second, err := NewRedisLock(store, "worker:lock", time.Minute)
	if err != nil {
		t.Fatalf("construct second lock: %v", err)
	}
	ctx := context.Background()

	if ok, _ := first.Acquire(ctx); !ok {
		t.Fatalf("expected first acquire to win")
	}
	ok, err := second.Acquire(ctx)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Fatalf("expected second acquire to lose while lock is held")
	}
}

func TestRedisLockReleaseIgnoresForeignOwner(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "worker:lock", time.Minute)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}
	ctx := context.Background()

	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatalf("expected acquire to win")
	}
	// TTL expiry elsewhere: another instance now owns the key.
	store.values["worker:lock"] = "someone-else"

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.values["worker:lock"] != "someone-else" {
		t.Fatalf("must not delete a lock owned by another instance")
	}
}

func TestRedisLockReleaseAfterExpiry(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "worker:lock", time.Minute)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}
	ctx := context.Background()

	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatalf("expected acquire to win")
	}
	delete(store.values, "worker:lock")

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("expected expired release to be a no-op, got %v", err)
	}
}

func TestRedisLockReleaseWithoutAcquire(t *testing.T) {
	store := newFakeRedisStore()
	lock, err := NewRedisLock(store, "worker:lock", time.Minute)
	if err != nil {
		t.Fatalf("construct lock: %v", err)
	}
	if err := lock.Release(context.Background()); err != nil {
		t.Fatalf("release without acquire: %v", err)
	}
}
