package flatten

import (
	"context"
	"testing"

	"github.com/mbolt/svgpress/pkg/doc"
	"github.com/mbolt/svgpress/pkg/item"
)

func icon() *item.Item {
	fill := doc.Solid(doc.RGB(30, 30, 200))
	var p doc.Path
	p.Move(doc.Point{})
	p.Line(doc.Point{X: 8, Y: 0})
	p.Line(doc.Point{X: 4, Y: 8})
	p.Close()
	return &item.Item{Kind: item.KindPath, Path: &p, Fill: &fill}
}

func pageWith(children ...item.Child) item.Page {
	root := item.Group(children...)
	root.Size = doc.Size{W: 200, H: 100}
	return item.Page{Size: doc.Size{W: 200, H: 100}, Root: root}
}

func TestFlattenDeduplicates(t *testing.T) {
	// Ten occurrences of the same icon collapse to one definition with
	// the occurrence count preserved.
	var children []item.Child
	for i := 0; i < 10; i++ {
		children = append(children, item.Placed(float64(i)*10, 5, icon()))
	}
	tree := &item.Tree{Title: "dedup", Pages: []item.Page{pageWith(children...)}}

	m, err := Flatten(context.Background(), tree)
	if err != nil {
		t.Fatalf("Flatten error = %v", err)
	}
	// One icon def plus the page root.
	if m.Len() != 2 {
		t.Fatalf("module has %d defs, want 2", m.Len())
	}
	iconAddr := item.AddressTree(icon())
	def, ok := m.Def(iconAddr)
	if !ok {
		t.Fatal("icon definition missing")
	}
	if def.RefCount != 10 {
		t.Errorf("icon RefCount = %d, want 10", def.RefCount)
	}
	if def.Content.Children != nil {
		t.Error("definition content retains children")
	}
}

func TestFlattenSharesAcrossPages(t *testing.T) {
	tree := &item.Tree{
		Title: "cross-page",
		Pages: []item.Page{
			pageWith(item.Placed(10, 10, icon())),
			pageWith(item.Placed(50, 60, icon())),
		},
	}
	m, err := Flatten(context.Background(), tree)
	if err != nil {
		t.Fatalf("Flatten error = %v", err)
	}
	def, ok := m.Def(item.AddressTree(icon()))
	if !ok {
		t.Fatal("icon definition missing")
	}
	if def.RefCount != 2 {
		t.Errorf("icon RefCount = %d, want 2", def.RefCount)
	}
}

func TestFlattenIdenticalPagesShareRoot(t *testing.T) {
	tree := &item.Tree{
		Title: "copies",
		Pages: []item.Page{
			pageWith(item.Placed(10, 10, icon())),
			pageWith(item.Placed(10, 10, icon())),
		},
	}
	m, err := Flatten(context.Background(), tree)
	if err != nil {
		t.Fatalf("Flatten error = %v", err)
	}
	if len(m.Refs) != 2 {
		t.Fatalf("module has %d refs, want 2", len(m.Refs))
	}
	if m.Refs[0].Addr != m.Refs[1].Addr {
		t.Error("identical pages did not share a root definition")
	}
	root, _ := m.Def(m.Refs[0].Addr)
	if root.RefCount != 2 {
		t.Errorf("root RefCount = %d, want 2", root.RefCount)
	}
}

func TestFlattenLeafEditLocality(t *testing.T) {
	// Editing one leaf must not disturb the addresses of siblings.
	other := icon()
	red := doc.Solid(doc.RGB(220, 40, 40))
	other.Fill = &red

	before := &item.Tree{Pages: []item.Page{pageWith(
		item.Placed(0, 0, icon()),
		item.Placed(20, 0, icon()),
	)}}
	after := &item.Tree{Pages: []item.Page{pageWith(
		item.Placed(0, 0, icon()),
		item.Placed(20, 0, other),
	)}}

	m1, err := Flatten(context.Background(), before)
	if err != nil {
		t.Fatalf("Flatten error = %v", err)
	}
	m2, err := Flatten(context.Background(), after)
	if err != nil {
		t.Fatalf("Flatten error = %v", err)
	}

	iconAddr := item.AddressTree(icon())
	if _, ok := m2.Def(iconAddr); !ok {
		t.Error("unedited sibling lost its address after a leaf edit")
	}
	if m1.Refs[0].Addr == m2.Refs[0].Addr {
		t.Error("page root address unchanged despite a content edit")
	}
	if m1.Hash() == m2.Hash() {
		t.Error("module hash unchanged despite a content edit")
	}
}

func TestFlattenRefsInDocumentOrder(t *testing.T) {
	// Pages flatten concurrently; the reference list still comes back
	// in page order.
	pages := make([]item.Page, 8)
	for i := range pages {
		pages[i] = pageWith(item.Placed(float64(i), 0, icon()))
	}
	m, err := Flatten(context.Background(), &item.Tree{Pages: pages})
	if err != nil {
		t.Fatalf("Flatten error = %v", err)
	}
	for i, r := range m.Refs {
		if r.Page != i {
			t.Fatalf("Refs[%d].Page = %d, want %d", i, r.Page, i)
		}
	}
}

func TestFlattenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pages := make([]item.Page, 4)
	for i := range pages {
		pages[i] = pageWith(item.Placed(0, 0, icon()))
	}
	if _, err := Flatten(ctx, &item.Tree{Pages: pages}); err == nil {
		t.Error("Flatten with a cancelled context returned no error")
	}
}

func TestInsertSeqAndOrder(t *testing.T) {
	m := NewModule("")
	a := m.Insert(icon(), nil)
	b := m.Insert(&item.Item{Kind: item.KindGroup}, []ChildRef{{Addr: a}})
	// Re-inserting existing content adds no definition.
	if again := m.Insert(icon(), nil); again != a {
		t.Errorf("re-insert returned %s, want %s", again.Short(), a.Short())
	}
	defs := m.Defs()
	if len(defs) != 2 {
		t.Fatalf("len(Defs) = %d, want 2", len(defs))
	}
	if defs[0].Addr != a || defs[1].Addr != b {
		t.Error("Defs not in insertion order")
	}
	if defs[0].Seq != 0 || defs[1].Seq != 1 {
		t.Errorf("Seq = %d, %d, want 0, 1", defs[0].Seq, defs[1].Seq)
	}
	if defs[0].RefCount != 2 {
		t.Errorf("re-inserted def RefCount = %d, want 2", defs[0].RefCount)
	}
}

func TestFlattenDefOrderCanonical(t *testing.T) {
	// Definition order must be a pure function of document content.
	// Many pages sharing many definitions maximizes insertion races
	// between the per-page goroutines; the canonical order has to come
	// out identical regardless of interleaving.
	variant := func(n int) *item.Item {
		fill := doc.Solid(doc.RGB(uint8(n), 30, 200))
		var p doc.Path
		p.Move(doc.Point{})
		p.Line(doc.Point{X: float64(n + 1)})
		p.Line(doc.Point{X: 4, Y: 8})
		p.Close()
		return &item.Item{Kind: item.KindPath, Path: &p, Fill: &fill}
	}
	pages := make([]item.Page, 8)
	for i := range pages {
		var children []item.Child
		for n := 0; n < 25; n++ {
			children = append(children, item.Placed(float64(n)*8, float64(i), variant(n)))
		}
		pages[i] = pageWith(children...)
	}
	tree := &item.Tree{Title: "order", Pages: pages}

	var first []item.Addr
	for run := 0; run < 5; run++ {
		m, err := Flatten(context.Background(), tree)
		if err != nil {
			t.Fatalf("Flatten error = %v", err)
		}
		defs := m.Defs()
		order := make([]item.Addr, len(defs))
		seen := make(map[item.Addr]bool, len(defs))
		for i, d := range defs {
			order[i] = d.Addr
			if d.Seq != i {
				t.Fatalf("run %d: Defs[%d].Seq = %d", run, i, d.Seq)
			}
			for _, c := range d.Children {
				if !seen[c.Addr] {
					t.Fatalf("run %d: def %s precedes its child %s", run, d.Addr.Short(), c.Addr.Short())
				}
			}
			seen[d.Addr] = true
		}
		if run == 0 {
			first = order
			continue
		}
		if len(order) != len(first) {
			t.Fatalf("run %d has %d defs, want %d", run, len(order), len(first))
		}
		for i := range order {
			if order[i] != first[i] {
				t.Fatalf("run %d: Defs[%d] = %s, want %s", run, i, order[i].Short(), first[i].Short())
			}
		}
	}
}

func TestHashIgnoresInternalOrder(t *testing.T) {
	// The module hash derives from the ordered references, so it is
	// stable across repeated flattening of the same tree even though
	// insertion interleaving may differ between runs.
	tree := &item.Tree{Title: "stable", Pages: []item.Page{
		pageWith(item.Placed(0, 0, icon())),
		pageWith(item.Placed(10, 10, icon())),
	}}
	var first string
	for i := 0; i < 5; i++ {
		m, err := Flatten(context.Background(), tree)
		if err != nil {
			t.Fatalf("Flatten error = %v", err)
		}
		if i == 0 {
			first = m.Hash()
			continue
		}
		if got := m.Hash(); got != first {
			t.Fatalf("run %d hash = %s, want %s", i, got, first)
		}
	}
}
