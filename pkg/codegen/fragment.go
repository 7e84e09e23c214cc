// Package codegen turns flattened item definitions into SVG text fragments,
// memoized by content address: each distinct definition is generated at most
// once per policy, no matter how many references the document holds or how
// many passes run, as long as its cache entry survives.
package codegen

import (
	"context"
	"sync"

	"github.com/mbolt/svgpress/pkg/cache"
	"github.com/mbolt/svgpress/pkg/observability"
)

// FragmentCache holds generated fragments keyed by their full cache key
// (content address plus generation-policy fingerprint). Entries are
// immutable once committed; a fragment is only inserted after generation
// completed, so readers always observe complete entries and a cancelled
// pass leaves nothing half-written behind.
//
// An optional backing cache persists fragments across processes. Reads fall
// through to it on an in-memory miss, writes go through to it.
//
// Eviction is guarded by pass leases: an export pass holds a lease for its
// whole duration, and Evict blocks until no pass is active, so an entry can
// never vanish under a pass that still references it.
type FragmentCache struct {
	mu      sync.RWMutex
	frags   map[string]string
	leases  int
	idle    *sync.Cond
	backing cache.Cache
}

// NewFragmentCache creates a fragment cache. backing may be nil for a
// purely in-memory cache.
func NewFragmentCache(backing cache.Cache) *FragmentCache {
	fc := &FragmentCache{
		frags:   make(map[string]string),
		backing: backing,
	}
	fc.idle = sync.NewCond(&fc.mu)
	return fc
}

// Acquire takes a pass lease. Every export pass must pair this with
// Release; eviction waits for all leases.
func (fc *FragmentCache) Acquire() {
	fc.mu.Lock()
	fc.leases++
	fc.mu.Unlock()
}

// Release drops a pass lease.
func (fc *FragmentCache) Release() {
	fc.mu.Lock()
	if fc.leases > 0 {
		fc.leases--
	}
	if fc.leases == 0 {
		fc.idle.Broadcast()
	}
	fc.mu.Unlock()
}

// Get returns the committed fragment body for key. On an in-memory miss it
// consults the backing cache and re-commits a hit locally.
func (fc *FragmentCache) Get(ctx context.Context, key string) (string, bool) {
	fc.mu.RLock()
	body, ok := fc.frags[key]
	fc.mu.RUnlock()
	if ok {
		return body, true
	}
	if fc.backing == nil {
		return "", false
	}
	data, hit, err := fc.backing.Get(ctx, key)
	if err != nil || !hit {
		return "", false
	}
	fc.commitLocal(key, string(data))
	return string(data), true
}

// Commit stores a fully generated fragment. Committing the same key twice
// keeps the first body; content addressing guarantees both writers
// generated identical text.
func (fc *FragmentCache) Commit(ctx context.Context, key, body string) {
	fc.commitLocal(key, body)
	if fc.backing != nil {
		_ = fc.backing.Set(ctx, key, []byte(body), cache.TTLFragment)
		observability.Cache().OnCacheSet(ctx, "fragment", len(body))
	}
}

func (fc *FragmentCache) commitLocal(key, body string) {
	fc.mu.Lock()
	if _, exists := fc.frags[key]; !exists {
		fc.frags[key] = body
	}
	fc.mu.Unlock()
}

// Entries returns a copy of the in-memory fragments, for snapshotting.
func (fc *FragmentCache) Entries() map[string]string {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	out := make(map[string]string, len(fc.frags))
	for k, v := range fc.frags {
		out[k] = v
	}
	return out
}

// Prime inserts already generated fragments, typically restored from a
// snapshot. Existing entries win.
func (fc *FragmentCache) Prime(entries map[string]string) {
	fc.mu.Lock()
	for k, v := range entries {
		if _, exists := fc.frags[k]; !exists {
			fc.frags[k] = v
		}
	}
	fc.mu.Unlock()
}

// Len returns the number of in-memory fragments.
func (fc *FragmentCache) Len() int {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return len(fc.frags)
}

// Evict discards all in-memory fragments. It blocks until no export pass
// holds a lease, or until ctx is done. The backing cache is left alone;
// its entries expire by TTL.
func (fc *FragmentCache) Evict(ctx context.Context) error {
	// Wake the waiter when the context fires so the cond loop can
	// observe cancellation.
	stop := context.AfterFunc(ctx, func() {
		fc.mu.Lock()
		fc.idle.Broadcast()
		fc.mu.Unlock()
	})
	defer stop()

	fc.mu.Lock()
	for fc.leases > 0 {
		if ctx.Err() != nil {
			fc.mu.Unlock()
			return ctx.Err()
		}
		fc.idle.Wait()
	}
	n := len(fc.frags)
	fc.frags = make(map[string]string)
	fc.mu.Unlock()

	observability.Cache().OnEviction(ctx, "fragment", n)
	return nil
}
