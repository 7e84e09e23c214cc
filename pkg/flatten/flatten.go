package flatten

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/mbolt/svgpress/pkg/item"
)

// Flatten deduplicates a lowered item tree into a module. Pages flatten in
// parallel; the shared table serializes insertions, and afterwards the
// reference list is re-ordered to document order and the definition table
// to its canonical order, so goroutine interleaving never leaks into the
// output.
func Flatten(ctx context.Context, tree *item.Tree) (*Module, error) {
	m := NewModule(tree.Title)

	g, ctx := errgroup.WithContext(ctx)
	for i := range tree.Pages {
		page := tree.Pages[i]
		idx := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			addr := flattenItem(m, page.Root)
			m.AddRef(Ref{
				Addr: addr,
				Page: idx,
				Size: page.Size,
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	m.SortRefs()
	m.Canonicalize()
	return m, nil
}

// flattenItem inserts the sub-tree rooted at it bottom-up and returns its
// address. Children are flattened first so the parent's address composes
// over theirs.
func flattenItem(m *Module, it *item.Item) item.Addr {
	children := make([]ChildRef, len(it.Children))
	for i, c := range it.Children {
		children[i] = ChildRef{
			Addr:      flattenItem(m, c.Item),
			Placement: c.Placement,
		}
	}
	return m.Insert(it, children)
}

// Hash returns a content hash of the whole module, derived from its
// document-ordered references. Two modules with the same hash assemble to
// the same output given the same generation policy, which makes this the
// natural artifact cache key.
func (m *Module) Hash() string {
	h := sha256.New()
	h.Write([]byte(m.Title))
	m.mu.RLock()
	for _, r := range m.Refs {
		h.Write(r.Addr[:])
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(r.Page))
		h.Write(buf[:])
		for _, f := range []float64{
			r.Placement.A, r.Placement.B, r.Placement.C,
			r.Placement.D, r.Placement.Tx, r.Placement.Ty,
			r.Size.W, r.Size.H,
		} {
			binary.BigEndian.PutUint64(buf[:], math.Float64bits(f))
			h.Write(buf[:])
		}
	}
	m.mu.RUnlock()
	return hex.EncodeToString(h.Sum(nil))
}
