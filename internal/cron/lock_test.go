package cron

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

type memoryLockStore struct {
	values map[string]string
	dels   int
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: make(map[string]string)}
}

func (s *memoryLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, taken := s.values[key]; taken {
		return false, nil
	}
	s.values[key] = value.(string)
	return true, nil
}

func (s *memoryLockStore) Get(_ context.Context, key string) (string, error) {
	value, ok := s.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return value, nil
}

func (s *memoryLockStore) Del(_ context.Context, keys ...string) error {
	s.dels++
	for _, key := range keys {
		delete(s.values, key)
	}
	return nil
}

func TestRedisLockSingleHolder(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLockStore()

	first, err := NewRedisLock(store, "cron:test", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, err := NewRedisLock(store, "cron:test", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}

	if won, err := first.Acquire(ctx); err != nil || !won {
		t.Fatalf("first acquire should win, got won=%v err=%v", won, err)
	}
	if won, err := second.Acquire(ctx); err != nil || won {
		t.Fatalf("second acquire must lose while the lease is held, got won=%v err=%v", won, err)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if won, err := second.Acquire(ctx); err != nil || !won {
		t.Fatalf("released lease should be acquirable, got won=%v err=%v", won, err)
	}
}

func TestRedisLockReleaseLeavesForeignLease(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLockStore()

	lock, err := NewRedisLock(store, "cron:test", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	if _, err := lock.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Simulates expiry followed by another instance taking the lease.
	store.values["cron:test"] = "someone-else"
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if store.values["cron:test"] != "someone-else" {
		t.Fatal("release must not delete a lease it does not own")
	}
	if store.dels != 0 {
		t.Fatalf("expected no deletes, got %d", store.dels)
	}
}

func TestRedisLockReleaseAfterExpiry(t *testing.T) {
	ctx := context.Background()
	store := newMemoryLockStore()

	lock, err := NewRedisLock(store, "cron:test", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	if _, err := lock.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	delete(store.values, "cron:test")
	if err := lock.Release(ctx); err != nil {
		t.Fatalf("release after expiry should be a no-op, got %v", err)
	}
}
