// Package cache provides the byte-level caching layer shared by the export
// pipeline: generated fragments, flattened modules and assembled artifacts
// are all cached through the same interface.
//
// Backends: FileCache for CLI usage, MemoryCache for in-process sharing and
// tests, RedisCache for persistent caches surviving process restarts, and
// NullCache to disable caching entirely.
//
// Keys are produced by a Keyer so every component derives cache keys the
// same way; all keys bottom out in SHA-256 content hashes, which makes
// entries immutable once written: the same key always maps to the same
// bytes, so concurrent readers need no coordination beyond the backend's
// own insertion safety.
package cache

import (
	"context"
	"time"
)

// Cache is a byte cache with TTL support.
type Cache interface {
	// Get retrieves a value. The second return reports whether the key
	// was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A zero ttl means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Default TTLs per entry class. Fragments and modules are content-addressed
// and never go stale, so their TTLs only bound memory/disk usage.
const (
	TTLFragment = 30 * 24 * time.Hour
	TTLModule   = 7 * 24 * time.Hour
	TTLArtifact = 24 * time.Hour
)

// FragmentKeyOpts carries the generation-policy inputs a fragment's text
// depends on besides its content address.
type FragmentKeyOpts struct {
	// Policy is the generator's policy fingerprint: which of the
	// definition's children are inlined versus referenced. Fragments
	// generated under different policies are distinct cache entries.
	Policy string

	// PrettyIDs selects human-readable definition ids.
	PrettyIDs bool
}

// ArtifactKeyOpts carries the assembly options an artifact depends on.
type ArtifactKeyOpts struct {
	InlineMaxRefs int
	InlineMaxSize int
	PageGap       float64
	PrettyIDs     bool
}

// Keyer generates cache keys for the pipeline stages.
type Keyer interface {
	// ModuleKey keys a flattened module by the source document's
	// content hash.
	ModuleKey(docHash string) string

	// FragmentKey keys one generated fragment by content address.
	FragmentKey(addr string, opts FragmentKeyOpts) string

	// ArtifactKey keys an assembled output document by module hash.
	ArtifactKey(moduleHash string, opts ArtifactKeyOpts) string
}

// DefaultKeyer derives keys by hashing the components, prefixed per key
// class so backends can shard or inspect by type.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the standard keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ModuleKey implements Keyer.
func (DefaultKeyer) ModuleKey(docHash string) string {
	return hashKey("module", docHash)
}

// FragmentKey implements Keyer.
func (DefaultKeyer) FragmentKey(addr string, opts FragmentKeyOpts) string {
	return hashKey("frag", addr, opts.Policy, opts.PrettyIDs)
}

// ArtifactKey implements Keyer.
func (DefaultKeyer) ArtifactKey(moduleHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", moduleHash, opts.InlineMaxRefs, opts.InlineMaxSize, opts.PageGap, opts.PrettyIDs)
}
