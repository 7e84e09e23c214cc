// Package flatten turns a vector-item tree into a flat, content-addressed
// module: a table mapping each distinct address to exactly one canonical
// item definition, plus the ordered list of references that places those
// definitions on pages.
//
// Addresses are computed bottom-up (Merkle-style): a leaf's address derives
// from its own content, a parent's from its content plus its children's
// addresses in order. A change to one leaf therefore only changes the
// addresses along its ancestor chain; sibling sub-trees keep their
// addresses and any cached fragments keyed on them.
//
// The table is append-only during a pass: an address, once inserted, maps
// to an immutable definition. Inserting the same content twice is a no-op
// apart from recording another reference.
package flatten

import (
	"sort"
	"sync"

	"github.com/mbolt/svgpress/pkg/doc"
	"github.com/mbolt/svgpress/pkg/item"
)

// ChildRef is an edge of the dependency DAG: a definition referencing
// another definition at a relative placement.
type ChildRef struct {
	Addr      item.Addr
	Placement doc.Transform
}

// Def is one canonical item definition. Content is the defining item with
// its Children field cleared; child structure lives in Children as
// address references. A Def is immutable once inserted.
type Def struct {
	Addr item.Addr

	// Content is the item's own content (kind, geometry, paint, ...).
	// Its Children slice is always nil; see Children below.
	Content *item.Item

	// Children are the definition's child references in paint order.
	Children []ChildRef

	// Seq is the insertion sequence number, used for deterministic
	// ordering of the shared-definitions section.
	Seq int

	// RefCount is the number of occurrences of this definition across
	// the whole document, counting every parent edge and page root.
	RefCount int
}

// Ref is a top-level occurrence: a page root placed in the output.
type Ref struct {
	Addr      item.Addr
	Placement doc.Transform

	// Page is the page index of this occurrence.
	Page int

	// Size is the page size, emitted on the page group.
	Size doc.Size
}

// Module is the flattened form of a document: the definition table plus
// the document-ordered reference list. It is the unit of serialization and
// the input to code generation and assembly.
type Module struct {
	Title string
	Refs  []Ref

	mu    sync.RWMutex
	defs  map[item.Addr]*Def
	order []item.Addr
}

// NewModule returns an empty module.
func NewModule(title string) *Module {
	return &Module{
		Title: title,
		defs:  make(map[item.Addr]*Def),
	}
}

// Insert adds a definition for the given item content and child references,
// computing its content address. If an equal definition is already present
// the existing address is returned and only the reference count grows.
//
// A hash collision (same address, structurally different content) is never
// merged: the new content is re-addressed with a disambiguation salt and
// inserted as a distinct definition.
func (m *Module) Insert(content *item.Item, children []ChildRef) item.Addr {
	childAddrs := make([]item.Addr, len(children))
	for i, c := range children {
		childAddrs[i] = c.Addr
	}
	addr := item.Address(content, childAddrs)

	m.mu.Lock()
	defer m.mu.Unlock()

	for salt := uint64(0); ; salt++ {
		if salt > 0 {
			addr = item.Salted(addr, salt)
		}
		existing, ok := m.defs[addr]
		if !ok {
			def := &Def{
				Addr:     addr,
				Content:  stripped(content),
				Children: children,
				Seq:      len(m.order),
				RefCount: 1,
			}
			m.defs[addr] = def
			m.order = append(m.order, addr)
			return addr
		}
		if sameDef(existing, content, children) {
			existing.RefCount++
			return addr
		}
		// Structurally different content hashed identically. Keep the
		// items distinct rather than risk incorrect output.
	}
}

// AddRef records a top-level page reference.
func (m *Module) AddRef(r Ref) {
	m.mu.Lock()
	m.Refs = append(m.Refs, r)
	m.mu.Unlock()
}

// Def returns the definition for addr.
func (m *Module) Def(addr item.Addr) (*Def, bool) {
	m.mu.RLock()
	d, ok := m.defs[addr]
	m.mu.RUnlock()
	return d, ok
}

// Defs returns all definitions in insertion order.
func (m *Module) Defs() []*Def {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Def, len(m.order))
	for i, a := range m.order {
		out[i] = m.defs[a]
	}
	return out
}

// Len returns the number of distinct definitions.
func (m *Module) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.defs)
}

// SortRefs orders the reference list by page index. Flattening may process
// pages in parallel; output order is document order regardless of
// completion order.
func (m *Module) SortRefs() {
	m.mu.Lock()
	sort.SliceStable(m.Refs, func(i, j int) bool { return m.Refs[i].Page < m.Refs[j].Page })
	m.mu.Unlock()
}

// Canonicalize rewrites the definition order to first reachability from
// the sorted reference list, children before parents. Parallel flattening
// interleaves insertions unpredictably, so raw insertion order varies from
// run to run; the canonical order is a pure function of document content,
// which keeps the emitted defs section and the wire format byte-identical
// across runs. Call after SortRefs.
func (m *Module) Canonicalize() {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[item.Addr]bool, len(m.order))
	order := make([]item.Addr, 0, len(m.order))
	var visit func(a item.Addr)
	visit = func(a item.Addr) {
		if seen[a] {
			return
		}
		seen[a] = true
		d, ok := m.defs[a]
		if !ok {
			return
		}
		for _, c := range d.Children {
			visit(c.Addr)
		}
		order = append(order, a)
	}
	for _, r := range m.Refs {
		visit(r.Addr)
	}
	// Definitions inserted directly without a page reference keep their
	// relative insertion order at the end.
	for _, a := range m.order {
		if !seen[a] {
			seen[a] = true
			order = append(order, a)
		}
	}
	m.order = order
	for i, a := range order {
		m.defs[a].Seq = i
	}
}

// stripped returns a copy of it with children cleared, so a Def does not
// retain the tree it was flattened from.
func stripped(it *item.Item) *item.Item {
	c := *it
	c.Children = nil
	c.Debug = ""
	return &c
}

// sameDef reports whether an existing definition matches the given content
// and child references. Child addresses have already been collision-checked
// on their own insertion, so comparing them by value is a sound structural
// equality for the whole sub-tree.
func sameDef(d *Def, content *item.Item, children []ChildRef) bool {
	if len(d.Children) != len(children) {
		return false
	}
	for i := range children {
		if d.Children[i] != children[i] {
			return false
		}
	}
	return item.Equal(d.Content, stripped(content))
}
