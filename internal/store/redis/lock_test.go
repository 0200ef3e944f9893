package redis

import (
	"context"
	"testing"
	"time"
)

func TestImportLockerExcludesSecondHolder(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()
	a := NewImportLocker(client, time.Minute)
	b := NewImportLocker(client, time.Minute)

	release, ok, err := a.TryLock(ctx, "src")
	if err != nil || !ok {
		t.Fatalf("TryLock() = %v, %v, want acquired", ok, err)
	}
	if ttl := mr.TTL(ImportLockKey("src")); ttl != time.Minute {
		t.Errorf("lock TTL = %v, want 1m", ttl)
	}

	if _, ok, err := b.TryLock(ctx, "src"); err != nil || ok {
		t.Fatalf("second TryLock() = %v, %v, want refused", ok, err)
	}
	if _, ok, _ := b.TryLock(ctx, "other"); !ok {
		t.Error("lock on another source should be independent")
	}

	if err := release(ctx); err != nil {
		t.Fatalf("release() error = %v", err)
	}
	if mr.Exists(ImportLockKey("src")) {
		t.Error("lock key should be gone after release")
	}
	if _, ok, _ := b.TryLock(ctx, "src"); !ok {
		t.Error("TryLock() after release should succeed")
	}
}

func TestImportLockReleaseKeepsForeignLease(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()
	a := NewImportLocker(client, time.Second)
	b := NewImportLocker(client, time.Minute)

	release, ok, _ := a.TryLock(ctx, "src")
	if !ok {
		t.Fatal("TryLock() refused on empty Redis")
	}
	mr.FastForward(2 * time.Second)

	if _, ok, _ := b.TryLock(ctx, "src"); !ok {
		t.Fatal("TryLock() should succeed once the first lease expired")
	}
	if err := release(ctx); err != nil {
		t.Fatalf("stale release() error = %v", err)
	}
	if !mr.Exists(ImportLockKey("src")) {
		t.Error("stale release removed the new holder's lock")
	}
}
