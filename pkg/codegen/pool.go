package codegen

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mbolt/svgpress/pkg/flatten"
	"github.com/mbolt/svgpress/pkg/item"
)

// execute runs generation over the definition DAG with a bounded worker
// pool. A definition becomes runnable once all of its distinct children
// completed; leaves are runnable immediately. The child-before-parent edge
// is the only ordering constraint, so unrelated subtrees generate fully in
// parallel.
func (r *genRun) execute(ctx context.Context, defs []*flatten.Def) error {
	byAddr := make(map[item.Addr]*flatten.Def, len(defs))
	pending := make(map[item.Addr]int, len(defs))
	parents := make(map[item.Addr][]item.Addr)
	for _, d := range defs {
		byAddr[d.Addr] = d
		// Dedup child edges: a parent placing the same child five
		// times still waits for it once.
		seen := make(map[item.Addr]struct{}, len(d.Children))
		for _, c := range d.Children {
			if _, dup := seen[c.Addr]; dup {
				continue
			}
			seen[c.Addr] = struct{}{}
			pending[d.Addr]++
			parents[c.Addr] = append(parents[c.Addr], d.Addr)
		}
	}

	// Buffered to the full definition count so completions never block
	// while holding the scheduler lock.
	ready := make(chan *flatten.Def, len(defs))
	var mu sync.Mutex
	remaining := len(defs)
	for _, d := range defs {
		if pending[d.Addr] == 0 {
			ready <- d
		}
	}

	workers := r.opts.Workers
	if workers > len(defs) {
		workers = len(defs)
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case d, ok := <-ready:
					if !ok {
						return nil
					}
					r.process(ctx, d)

					mu.Lock()
					for _, pa := range parents[d.Addr] {
						pending[pa]--
						if pending[pa] == 0 {
							ready <- byAddr[pa]
						}
					}
					remaining--
					if remaining == 0 {
						close(ready)
					}
					mu.Unlock()
				}
			}
		})
	}
	return g.Wait()
}
