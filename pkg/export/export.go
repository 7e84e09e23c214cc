// Package export orchestrates the document-to-SVG pipeline: lowering,
// flattening, memoized code generation and assembly, with per-stage caching
// and timing. CLI and preview server both drive exports through the same
// Runner so caching behaves identically at every entry point.
//
// A Runner is stateless apart from its cache, fragment cache and logger;
// multiple goroutines can run passes on one Runner concurrently.
package export

import (
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mbolt/svgpress/pkg/cache"
	"github.com/mbolt/svgpress/pkg/errors"
	"github.com/mbolt/svgpress/pkg/flatten"
)

// Defaults shared by CLI, config file and preview server.
const (
	// DefaultInlineMaxRefs is the highest reference count still inlined.
	DefaultInlineMaxRefs = 1

	// DefaultInlineMaxSize is the largest inlined fragment in bytes.
	DefaultInlineMaxSize = 4096

	// DefaultPageGap is the vertical gap between stacked pages.
	DefaultPageGap = 8.0
)

// Options configures one export pass. The zero value is valid and uses the
// defaults above.
type Options struct {
	// PageGap is the vertical gap between consecutive pages.
	PageGap float64 `json:"page_gap,omitempty"`

	// InlineMaxRefs and InlineMaxSize tune the inline-versus-shared
	// placement of generated fragments. Both are pure functions of the
	// module, so any fixed pair keeps output deterministic.
	InlineMaxRefs int `json:"inline_max_refs,omitempty"`
	InlineMaxSize int `json:"inline_max_size,omitempty"`

	// Workers bounds parallel fragment generation.
	Workers int `json:"workers,omitempty"`

	// PrettyIDs appends item kinds to definition ids for debugging.
	PrettyIDs bool `json:"pretty_ids,omitempty"`

	// Refresh bypasses the module and artifact caches for this pass.
	// The fragment cache is still consulted; evict it explicitly to
	// force full regeneration.
	Refresh bool `json:"refresh,omitempty"`

	// Logger overrides the runner's logger for this pass.
	Logger *log.Logger `json:"-"`
}

// ValidateAndSetDefaults checks option values and fills in defaults. It is
// idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.PageGap < 0 {
		return errors.New(errors.ErrCodeInvalidOptions, "page gap must not be negative")
	}
	if o.PageGap == 0 {
		o.PageGap = DefaultPageGap
	}
	if o.InlineMaxRefs < 0 || o.InlineMaxSize < 0 || o.Workers < 0 {
		return errors.New(errors.ErrCodeInvalidOptions, "inline thresholds and workers must not be negative")
	}
	if o.InlineMaxRefs == 0 {
		o.InlineMaxRefs = DefaultInlineMaxRefs
	}
	if o.InlineMaxSize == 0 {
		o.InlineMaxSize = DefaultInlineMaxSize
	}
	return nil
}

// Result contains the outputs of one export pass.
type Result struct {
	// PassID identifies this pass in logs and hooks.
	PassID string

	// Module is the flattened module the artifact was assembled from.
	Module *flatten.Module

	// ModuleHash is the content hash of the module.
	ModuleHash string

	// Artifact is the assembled SVG document.
	Artifact []byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo

	// Diagnostics lists degradations encountered during the pass.
	Diagnostics []errors.Diagnostic
}

// Stats contains pass execution statistics.
type Stats struct {
	PageCount int
	ItemCount int
	DefCount  int

	LowerTime    time.Duration
	FlattenTime  time.Duration
	CodegenTime  time.Duration
	AssembleTime time.Duration
	TotalTime    time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	// ModuleHit means the flattened module came from cache and the
	// lowering and flattening stages were skipped.
	ModuleHit bool

	// ArtifactHit means the assembled document came from cache and the
	// generation and assembly stages were skipped.
	ArtifactHit bool

	// FragmentHits counts fragments served from the fragment cache;
	// FragmentInvocations counts actual generation runs.
	FragmentHits        int
	FragmentInvocations int
}

// docHash computes the content hash of the input document for the module
// cache key. Hashing the canonical JSON form keeps it stable across
// processes.
func docHash(d any) (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidDocument, err, "hash document")
	}
	return cache.Hash(data), nil
}
