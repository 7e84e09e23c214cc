package codegen

import (
	"context"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/mbolt/svgpress/pkg/cache"
	"github.com/mbolt/svgpress/pkg/errors"
	"github.com/mbolt/svgpress/pkg/flatten"
	"github.com/mbolt/svgpress/pkg/item"
	"github.com/mbolt/svgpress/pkg/observability"
)

// stage name used in diagnostics.
const stage = "codegen"

// Options tunes generation. The inline policy is a tunable, not a contract,
// but it is a pure function of the module, so output stays deterministic
// for a fixed input.
type Options struct {
	// InlineMaxRefs is the highest reference count at which a
	// definition is still inlined at each occurrence. Definitions
	// referenced more often are promoted to the shared section.
	// Default 1: anything used twice is shared.
	InlineMaxRefs int

	// InlineMaxSize is the largest fragment (in bytes) inlined at a
	// single occurrence. Bigger singly-referenced fragments are
	// promoted too, keeping page groups compact. Default 4096.
	InlineMaxSize int

	// Workers bounds parallel generation. Default GOMAXPROCS.
	Workers int

	// PrettyIDs appends the item kind to definition ids for
	// easier debugging of the output.
	PrettyIDs bool
}

func (o *Options) defaults() {
	if o.InlineMaxRefs <= 0 {
		o.InlineMaxRefs = 1
	}
	if o.InlineMaxSize <= 0 {
		o.InlineMaxSize = 4096
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
}

// Fragment is the generated text for one definition, plus the placement
// decision derived from the module's reference counts.
type Fragment struct {
	Addr item.Addr

	// Body is the fragment's SVG text, without any id attribute; ids
	// are attached where the fragment is emitted.
	Body string

	// Shared marks a fragment promoted to the shared-definitions
	// section, referenced by DefID from every occurrence.
	Shared bool

	// DefID is the definition id used by <use> references.
	DefID string

	// CacheHit marks a fragment served from the cache without
	// invoking generation.
	CacheHit bool
}

// NamedDef is an auxiliary definition (gradient or clip path) promoted to
// the global defs section.
type NamedDef struct {
	ID   string
	Body string
}

// Output is the result of generating one module.
type Output struct {
	// Frags maps every definition address to its fragment.
	Frags map[item.Addr]*Fragment

	// Gradients and Clips are the auxiliary definitions required by
	// the fragments, sorted by id for deterministic defs ordering.
	Gradients []NamedDef
	Clips     []NamedDef

	// Invocations counts actual generation runs; CacheHits counts
	// fragments served without invoking the generator.
	Invocations int
	CacheHits   int
}

// Generator produces fragments for flattened modules. A Generator is safe
// for concurrent use and is typically shared across export passes so its
// fragment cache keeps paying off.
type Generator struct {
	frags *FragmentCache
	keyer cache.Keyer
}

// NewGenerator creates a generator backed by the given fragment cache.
// A nil cache gets a fresh in-memory one.
func NewGenerator(frags *FragmentCache, keyer cache.Keyer) *Generator {
	if frags == nil {
		frags = NewFragmentCache(nil)
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	return &Generator{frags: frags, keyer: keyer}
}

// Fragments returns the generator's fragment cache.
func (g *Generator) Fragments() *FragmentCache { return g.frags }

// Generate produces fragments for every definition in m. Definitions with
// no dependency on each other generate in parallel; a group waits until all
// of its children's fragments exist, which is the only join in the
// pipeline. A definition that cannot be generated yields a no-op
// placeholder fragment and a diagnostic; generation of siblings continues.
func (g *Generator) Generate(ctx context.Context, m *flatten.Module, opts Options, diags *errors.Diagnostics) (*Output, error) {
	opts.defaults()
	if diags == nil {
		diags = errors.NewDiagnostics()
	}

	defs := m.Defs()
	out := &Output{Frags: make(map[item.Addr]*Fragment, len(defs))}
	if len(defs) == 0 {
		return out, nil
	}

	// Auxiliary defs derive from definition content alone, so they are
	// collected up front regardless of fragment cache hits.
	out.Gradients, out.Clips = collectAuxDefs(defs, opts)

	run := &genRun{
		gen:   g,
		mod:   m,
		opts:  opts,
		diags: diags,
		out:   out,
	}
	if err := run.execute(ctx, defs); err != nil {
		return nil, err
	}
	return out, nil
}

// genRun is the per-call state of one generation pass.
type genRun struct {
	gen   *Generator
	mod   *flatten.Module
	opts  Options
	diags *errors.Diagnostics
	out   *Output

	mu sync.Mutex // guards out
}

// fragment returns the completed fragment for addr. Children complete
// before their parents, so this never sees a missing entry during body
// emission.
func (r *genRun) fragment(addr item.Addr) *Fragment {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.out.Frags[addr]
}

// process generates (or fetches) the fragment for one definition.
func (r *genRun) process(ctx context.Context, def *flatten.Def) {
	policy := r.policyBits(def)
	key := r.gen.keyer.FragmentKey(def.Addr.String(), cache.FragmentKeyOpts{
		Policy:    policy,
		PrettyIDs: r.opts.PrettyIDs,
	})

	frag := &Fragment{Addr: def.Addr, DefID: defID(def, r.opts)}

	if body, ok := r.gen.frags.Get(ctx, key); ok {
		frag.Body = body
		frag.CacheHit = true
		observability.Cache().OnCacheHit(ctx, "fragment")
	} else {
		observability.Cache().OnCacheMiss(ctx, "fragment")
		body, err := r.emitBody(def)
		if err != nil {
			r.diags.Add(stage, errors.ErrCodeMalformedItem, -1,
				"definition %s (%s): %v", def.Addr.Short(), def.Content.Kind, err)
			observability.Export().OnDiagnostic(ctx, stage, string(errors.ErrCodeMalformedItem))
			body = noopFragment
		}
		frag.Body = body
		r.gen.frags.Commit(ctx, key, body)
	}

	frag.Shared = r.shared(def, len(frag.Body))

	r.mu.Lock()
	r.out.Frags[def.Addr] = frag
	if frag.CacheHit {
		r.out.CacheHits++
	} else {
		r.out.Invocations++
	}
	r.mu.Unlock()
}

// shared decides whether a definition goes to the shared-definitions
// section. Pure function of reference count and fragment size.
func (r *genRun) shared(def *flatten.Def, size int) bool {
	if def.RefCount > r.opts.InlineMaxRefs {
		return true
	}
	return size > r.opts.InlineMaxSize
}

// policyBits fingerprints the inline/shared decision of every child, in
// order. The fragment's text depends on these decisions, so they are part
// of its cache key: a later pass in which a child's reference count crossed
// the inline threshold regenerates the parent rather than reusing stale
// text.
func (r *genRun) policyBits(def *flatten.Def) string {
	if len(def.Children) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(def.Children))
	for _, c := range def.Children {
		child := r.fragment(c.Addr)
		childDef, _ := r.mod.Def(c.Addr)
		if child != nil && childDef != nil && r.shared(childDef, len(child.Body)) {
			b.WriteByte('u')
		} else {
			b.WriteByte('i')
		}
	}
	return b.String()
}

// defID derives the SVG definition id from the address: "g" for glyphs,
// "c" for clips, "f" for gradients, "d" for everything else.
func defID(def *flatten.Def, opts Options) string {
	prefix := byte('d')
	if def.Content.Kind == item.KindGlyph {
		prefix = 'g'
	}
	id := def.Addr.DefID(prefix)
	if opts.PrettyIDs {
		id += "-" + def.Content.Kind.String()
	}
	return id
}

// collectAuxDefs gathers gradient and clip-path definitions referenced by
// the module's definitions, deduplicated and sorted by id.
func collectAuxDefs(defs []*flatten.Def, opts Options) (gradients, clips []NamedDef) {
	gradSeen := make(map[string]string)
	clipSeen := make(map[string]string)
	for _, d := range defs {
		if d.Content.Fill != nil && d.Content.Fill.Gradient != nil {
			id := gradientID(d.Content.Fill.Gradient)
			if _, ok := gradSeen[id]; !ok {
				gradSeen[id] = gradientBody(id, d.Content.Fill.Gradient)
			}
		}
		if d.Content.Stroke != nil && d.Content.Stroke.Paint.Gradient != nil {
			id := gradientID(d.Content.Stroke.Paint.Gradient)
			if _, ok := gradSeen[id]; !ok {
				gradSeen[id] = gradientBody(id, d.Content.Stroke.Paint.Gradient)
			}
		}
		if d.Content.Clip != nil {
			id := d.Addr.DefID('c')
			if _, ok := clipSeen[id]; !ok {
				clipSeen[id] = clipBody(id, d.Content.Clip)
			}
		}
	}
	for id, body := range gradSeen {
		gradients = append(gradients, NamedDef{ID: id, Body: body})
	}
	for id, body := range clipSeen {
		clips = append(clips, NamedDef{ID: id, Body: body})
	}
	sort.Slice(gradients, func(i, j int) bool { return gradients[i].ID < gradients[j].ID })
	sort.Slice(clips, func(i, j int) bool { return clips[i].ID < clips[j].ID })
	return gradients, clips
}
