package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"digitalwall/internal/ports"
)

func TestMemoryStoreExpiresEntries(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := store.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("get before expiry: %q %v", got, err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, "k"); !errors.Is(err, ports.ErrCacheMiss) {
		t.Fatalf("expected cache miss after expiry, got %v", err)
	}
}

func TestMemoryStoreMissingKey(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Get(context.Background(), "absent"); !errors.Is(err, ports.ErrCacheMiss) {
		t.Fatalf("expected cache miss, got %v", err)
	}
}

func TestMemoryStoreCounters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if v, _ := store.Read(ctx, "c"); v != 0 {
		t.Fatalf("fresh counter = %d, want 0", v)
	}
	store.Increment(ctx, "c", 3)
	store.Increment(ctx, "c", 4)
	if v, _ := store.Read(ctx, "c"); v != 7 {
		t.Fatalf("counter = %d, want 7", v)
	}
}
