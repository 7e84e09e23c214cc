package codegen

import (
	"context"
	"testing"
	"time"

	"github.com/mbolt/svgpress/pkg/cache"
)

func TestFragmentCacheCommitAndGet(t *testing.T) {
	ctx := context.Background()
	fc := NewFragmentCache(nil)

	if _, ok := fc.Get(ctx, "k"); ok {
		t.Error("empty cache returned a hit")
	}
	fc.Commit(ctx, "k", "<g/>")
	body, ok := fc.Get(ctx, "k")
	if !ok || body != "<g/>" {
		t.Errorf("Get = %q, %v", body, ok)
	}
	// Entries are immutable; a second commit keeps the first body.
	fc.Commit(ctx, "k", "<rect/>")
	if body, _ := fc.Get(ctx, "k"); body != "<g/>" {
		t.Errorf("body after double commit = %q, want %q", body, "<g/>")
	}
	if fc.Len() != 1 {
		t.Errorf("Len = %d, want 1", fc.Len())
	}
}

func TestFragmentCacheBacking(t *testing.T) {
	ctx := context.Background()
	backing := cache.NewMemoryCache()

	first := NewFragmentCache(backing)
	first.Commit(ctx, "k", "<g/>")

	// A fresh in-memory cache over the same backing store sees the
	// fragment, as a later process would.
	second := NewFragmentCache(backing)
	body, ok := second.Get(ctx, "k")
	if !ok || body != "<g/>" {
		t.Fatalf("Get through backing = %q, %v", body, ok)
	}
	// The hit is re-committed locally.
	if second.Len() != 1 {
		t.Errorf("Len after backing hit = %d, want 1", second.Len())
	}
}

func TestFragmentCacheEntriesAndPrime(t *testing.T) {
	ctx := context.Background()
	fc := NewFragmentCache(nil)
	fc.Commit(ctx, "a", "<g/>")
	fc.Commit(ctx, "b", "<rect/>")

	entries := fc.Entries()
	if len(entries) != 2 {
		t.Fatalf("Entries has %d fragments, want 2", len(entries))
	}
	entries["a"] = "mutated"
	if body, _ := fc.Get(ctx, "a"); body != "<g/>" {
		t.Error("Entries returned the live map instead of a copy")
	}

	restored := NewFragmentCache(nil)
	restored.Commit(ctx, "b", "<circle/>")
	restored.Prime(fc.Entries())
	if body, _ := restored.Get(ctx, "a"); body != "<g/>" {
		t.Error("Prime did not insert the restored fragment")
	}
	if body, _ := restored.Get(ctx, "b"); body != "<circle/>" {
		t.Error("Prime overwrote an existing fragment")
	}
}

func TestEvictWaitsForLeases(t *testing.T) {
	ctx := context.Background()
	fc := NewFragmentCache(nil)
	fc.Commit(ctx, "k", "<g/>")

	fc.Acquire()
	done := make(chan error, 1)
	go func() { done <- fc.Evict(ctx) }()

	select {
	case err := <-done:
		t.Fatalf("Evict returned %v while a pass lease was held", err)
	case <-time.After(50 * time.Millisecond):
	}

	fc.Release()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Evict error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Evict did not return after the lease was released")
	}
	if fc.Len() != 0 {
		t.Errorf("Len after eviction = %d, want 0", fc.Len())
	}
}

func TestEvictCancelled(t *testing.T) {
	fc := NewFragmentCache(nil)
	fc.Acquire()
	defer fc.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := fc.Evict(ctx); err == nil {
		t.Error("Evict under a held lease returned nil despite context expiry")
	}
}
