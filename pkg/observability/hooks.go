// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers register hooks
// at startup to receive events about export passes, cache operations and
// fragment eviction; the preview server wires a Prometheus implementation,
// the library itself stays backend-free.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetExportHooks(&myExportHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Export().OnStageStart(ctx, "lower", pages)
//	// ... run the stage ...
//	observability.Export().OnStageComplete(ctx, "lower", items, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Export Hooks
// =============================================================================

// ExportHooks receives events from the export pipeline.
type ExportHooks interface {
	// OnPassStart records the beginning of an export pass.
	OnPassStart(ctx context.Context, passID string, pages int)

	// OnPassComplete records the end of an export pass. bytes is the
	// size of the assembled output, zero if the pass failed.
	OnPassComplete(ctx context.Context, passID string, bytes int, duration time.Duration, err error)

	// OnStageStart records the beginning of one pipeline stage
	// ("lower", "flatten", "codegen", "assemble"). units is the number
	// of work units entering the stage (pages, items, definitions).
	OnStageStart(ctx context.Context, stage string, units int)

	// OnStageComplete records the end of one pipeline stage. produced
	// is the number of outputs (items, definitions, fragments, bytes).
	OnStageComplete(ctx context.Context, stage string, produced int, duration time.Duration, err error)

	// OnDiagnostic records a stage-local degradation.
	OnDiagnostic(ctx context.Context, stage, code string)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit for a key type
	// ("fragment", "module", "artifact").
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)

	// OnEviction records an eviction sweep removing n entries.
	OnEviction(ctx context.Context, keyType string, n int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopExportHooks is a no-op implementation of ExportHooks.
type NoopExportHooks struct{}

func (NoopExportHooks) OnPassStart(context.Context, string, int)                           {}
func (NoopExportHooks) OnPassComplete(context.Context, string, int, time.Duration, error)  {}
func (NoopExportHooks) OnStageStart(context.Context, string, int)                          {}
func (NoopExportHooks) OnStageComplete(context.Context, string, int, time.Duration, error) {}
func (NoopExportHooks) OnDiagnostic(context.Context, string, string)                       {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}
func (NoopCacheHooks) OnEviction(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	exportHooks ExportHooks = NoopExportHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	hooksMu     sync.RWMutex
)

// SetExportHooks registers custom export hooks.
// This should be called once at application startup before any export.
func SetExportHooks(h ExportHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		exportHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Export returns the registered export hooks.
func Export() ExportHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return exportHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	exportHooks = NoopExportHooks{}
	cacheHooks = NoopCacheHooks{}
}
