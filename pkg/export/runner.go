package export

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/mbolt/svgpress/pkg/assemble"
	"github.com/mbolt/svgpress/pkg/cache"
	"github.com/mbolt/svgpress/pkg/codegen"
	"github.com/mbolt/svgpress/pkg/doc"
	"github.com/mbolt/svgpress/pkg/errors"
	"github.com/mbolt/svgpress/pkg/flatten"
	"github.com/mbolt/svgpress/pkg/item"
	"github.com/mbolt/svgpress/pkg/lower"
	"github.com/mbolt/svgpress/pkg/observability"
)

// Runner encapsulates pipeline execution with caching. Both CLI and the
// preview server use this to avoid duplicating caching logic.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	gen *codegen.Generator
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (persistent caching disabled; the
// in-memory fragment cache still memoizes across passes).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
		gen:    codegen.NewGenerator(codegen.NewFragmentCache(c), keyer),
	}
}

// Generator returns the runner's shared fragment generator.
func (r *Runner) Generator() *codegen.Generator { return r.gen }

// EvictFragments discards the in-memory fragment cache. It blocks until no
// export pass is active.
func (r *Runner) EvictFragments(ctx context.Context) error {
	return r.gen.Fragments().Evict(ctx)
}

// Export runs the complete lower → flatten → generate → assemble pipeline
// with caching. Cancelling ctx aborts the pass; committed cache entries
// survive, partial state does not.
func (r *Runner) Export(ctx context.Context, d *doc.Document, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	logger := r.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	}

	result := &Result{PassID: uuid.NewString()}
	start := time.Now()

	// A pass lease keeps fragment eviction from racing this pass.
	frags := r.gen.Fragments()
	frags.Acquire()
	defer frags.Release()

	observability.Export().OnPassStart(ctx, result.PassID, len(d.Pages))
	var passErr error
	defer func() {
		result.Stats.TotalTime = time.Since(start)
		observability.Export().OnPassComplete(ctx, result.PassID, len(result.Artifact), result.Stats.TotalTime, passErr)
	}()

	diags := errors.NewDiagnostics()
	defer func() { result.Diagnostics = diags.All() }()

	m, err := r.module(ctx, d, opts, diags, result, logger)
	if err != nil {
		passErr = cancelAware(ctx, err)
		return nil, passErr
	}
	result.Module = m
	result.ModuleHash = m.Hash()
	result.Stats.PageCount = len(d.Pages)
	result.Stats.DefCount = m.Len()

	// Try the assembled artifact before generating anything.
	artifactKey := r.Keyer.ArtifactKey(result.ModuleHash, opts.artifactKeyOpts())
	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, artifactKey); err == nil && hit {
			observability.Cache().OnCacheHit(ctx, "artifact")
			result.Artifact = data
			result.CacheInfo.ArtifactHit = true
			logger.Info("artifact from cache", "bytes", len(data), "pass", result.PassID)
			return result, nil
		}
		observability.Cache().OnCacheMiss(ctx, "artifact")
	}

	genStart := time.Now()
	observability.Export().OnStageStart(ctx, "codegen", m.Len())
	out, err := r.gen.Generate(ctx, m, codegen.Options{
		InlineMaxRefs: opts.InlineMaxRefs,
		InlineMaxSize: opts.InlineMaxSize,
		Workers:       opts.Workers,
		PrettyIDs:     opts.PrettyIDs,
	}, diags)
	result.Stats.CodegenTime = time.Since(genStart)
	generated := 0
	if out != nil {
		generated = len(out.Frags)
	}
	observability.Export().OnStageComplete(ctx, "codegen", generated, result.Stats.CodegenTime, err)
	if err != nil {
		passErr = cancelAware(ctx, err)
		return nil, passErr
	}
	result.CacheInfo.FragmentHits = out.CacheHits
	result.CacheInfo.FragmentInvocations = out.Invocations

	logger.Info("generated fragments",
		"definitions", m.Len(),
		"invocations", out.Invocations,
		"cache_hits", out.CacheHits,
		"duration", result.Stats.CodegenTime)

	asmStart := time.Now()
	observability.Export().OnStageStart(ctx, "assemble", len(m.Refs))
	svg, err := assemble.Assemble(m, out, assemble.Options{PageGap: opts.PageGap})
	result.Stats.AssembleTime = time.Since(asmStart)
	observability.Export().OnStageComplete(ctx, "assemble", len(svg), result.Stats.AssembleTime, err)
	if err != nil {
		passErr = err
		return nil, err
	}
	result.Artifact = []byte(svg)

	if err := r.Cache.Set(ctx, artifactKey, result.Artifact, cache.TTLArtifact); err == nil {
		observability.Cache().OnCacheSet(ctx, "artifact", len(result.Artifact))
	}

	logger.Info("assembled document",
		"pages", len(m.Refs),
		"bytes", len(result.Artifact),
		"duration", result.Stats.AssembleTime)

	return result, nil
}

// module produces the flattened module, from cache when possible. On a
// cache hit the lowering and flattening stages are skipped entirely.
func (r *Runner) module(ctx context.Context, d *doc.Document, opts Options, diags *errors.Diagnostics, result *Result, logger *log.Logger) (*flatten.Module, error) {
	dh, err := docHash(d)
	if err != nil {
		return nil, err
	}
	moduleKey := r.Keyer.ModuleKey(dh)

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, moduleKey); err == nil && hit {
			if m, err := flatten.UnmarshalModule(data); err == nil {
				observability.Cache().OnCacheHit(ctx, "module")
				result.CacheInfo.ModuleHit = true
				logger.Info("module from cache", "definitions", m.Len(), "refs", len(m.Refs))
				return m, nil
			}
			// Undecodable entry, fall through to recompute.
		}
		observability.Cache().OnCacheMiss(ctx, "module")
	}

	lowerStart := time.Now()
	observability.Export().OnStageStart(ctx, "lower", len(d.Pages))
	tree, err := lower.Lower(ctx, d, diags)
	result.Stats.LowerTime = time.Since(lowerStart)
	items := 0
	if tree != nil {
		items = tree.ItemCount()
	}
	observability.Export().OnStageComplete(ctx, "lower", items, result.Stats.LowerTime, err)
	if err != nil {
		return nil, err
	}
	result.Stats.ItemCount = items

	logger.Info("lowered document",
		"pages", len(tree.Pages),
		"items", items,
		"duration", result.Stats.LowerTime)

	flatStart := time.Now()
	observability.Export().OnStageStart(ctx, "flatten", items)
	m, err := flatten.Flatten(ctx, tree)
	result.Stats.FlattenTime = time.Since(flatStart)
	defs := 0
	if m != nil {
		defs = m.Len()
	}
	observability.Export().OnStageComplete(ctx, "flatten", defs, result.Stats.FlattenTime, err)
	if err != nil {
		return nil, err
	}

	logger.Info("flattened module",
		"items", items,
		"definitions", defs,
		"duration", result.Stats.FlattenTime)

	if !opts.Refresh {
		if data, err := flatten.MarshalModule(m); err == nil {
			if err := r.Cache.Set(ctx, moduleKey, data, cache.TTLModule); err == nil {
				observability.Cache().OnCacheSet(ctx, "module", len(data))
			}
		}
	}
	return m, nil
}

// ExportPage lowers and flattens a single page without touching the module
// cache, for partial previews.
func (r *Runner) ExportPage(ctx context.Context, page *doc.Page, index int, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	diags := errors.NewDiagnostics()

	frags := r.gen.Fragments()
	frags.Acquire()
	defer frags.Release()

	p := lower.LowerPage(page, index, diags)
	tree := &item.Tree{Pages: []item.Page{p}}
	m, err := flatten.Flatten(ctx, tree)
	if err != nil {
		return nil, cancelAware(ctx, err)
	}
	// Flattening numbers references by tree position; restore the
	// page's document index for the output's data-page attribute.
	for i := range m.Refs {
		m.Refs[i].Page = index
	}

	result := &Result{PassID: uuid.NewString(), Module: m, ModuleHash: m.Hash()}
	result.Stats.PageCount = 1
	result.Stats.DefCount = m.Len()

	out, err := r.gen.Generate(ctx, m, codegen.Options{
		InlineMaxRefs: opts.InlineMaxRefs,
		InlineMaxSize: opts.InlineMaxSize,
		Workers:       opts.Workers,
		PrettyIDs:     opts.PrettyIDs,
	}, diags)
	if err != nil {
		return nil, cancelAware(ctx, err)
	}
	result.CacheInfo.FragmentHits = out.CacheHits
	result.CacheInfo.FragmentInvocations = out.Invocations

	svg, err := assemble.Assemble(m, out, assemble.Options{PageGap: opts.PageGap})
	if err != nil {
		return nil, err
	}
	result.Artifact = []byte(svg)
	result.Diagnostics = diags.All()
	return result, nil
}

func (o Options) artifactKeyOpts() cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		InlineMaxRefs: o.InlineMaxRefs,
		InlineMaxSize: o.InlineMaxSize,
		PageGap:       o.PageGap,
		PrettyIDs:     o.PrettyIDs,
	}
}

// cancelAware maps stage failures caused by context cancellation to the
// cancellation error code.
func cancelAware(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.Wrap(errors.ErrCodeCancelled, err, "export pass cancelled")
	}
	return err
}
