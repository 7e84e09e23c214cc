// Package lower translates a laid-out document into the vector-item tree
// consumed by flattening and code generation.
//
// Lowering preserves the visual contract: every visible mark in the source
// has a corresponding item, and items carrying no visible content are not
// lowered at all. It also normalizes the tree so deduplication is
// effective: coordinates become relative to the smallest enclosing group,
// redundant nested groups and identity transforms collapse, and degenerate
// zero-area primitives are dropped.
//
// Unresolvable resources (a glyph without an embeddable outline, an image
// without decodable data) degrade to placeholder items and record a
// diagnostic; lowering never aborts an export because of one bad item.
package lower

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mbolt/svgpress/pkg/doc"
	"github.com/mbolt/svgpress/pkg/errors"
	"github.com/mbolt/svgpress/pkg/item"
)

// stage name used in diagnostics.
const stage = "lower"

// Lower produces the vector-item tree for a whole document. Pages lower in
// parallel; the source document is read-only and never mutated.
func Lower(ctx context.Context, d *doc.Document, diags *errors.Diagnostics) (*item.Tree, error) {
	if d == nil || len(d.Pages) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidDocument, "document has no pages")
	}
	if diags == nil {
		diags = errors.NewDiagnostics()
	}

	tree := &item.Tree{
		Title: d.Title,
		Pages: make([]item.Page, len(d.Pages)),
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := range d.Pages {
		idx := i
		page := &d.Pages[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tree.Pages[idx] = item.Page{
				Size: page.Size,
				Root: lowerPage(page, idx, diags),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tree, nil
}

// LowerPage lowers a single page, for partial or incremental export of a
// designated sub-tree.
func LowerPage(page *doc.Page, index int, diags *errors.Diagnostics) item.Page {
	if diags == nil {
		diags = errors.NewDiagnostics()
	}
	return item.Page{Size: page.Size, Root: lowerPage(page, index, diags)}
}

func lowerPage(page *doc.Page, idx int, diags *errors.Diagnostics) *item.Item {
	// The page class and per-occurrence page attributes belong to the
	// wrapper element the assembler emits, not to the root's content:
	// identical pages at different indices must share one definition.
	root := &item.Item{
		Kind: item.KindGroup,
		Size: page.Size,
	}

	// The page background always renders, defaulting to white, so the
	// output is self-contained on any viewer background.
	fill := page.Fill
	if fill == nil {
		white := doc.Solid(doc.White)
		fill = &white
	}
	bg := doc.RectPath(page.Size)
	root.Children = append(root.Children, item.Placed(0, 0, &item.Item{
		Kind: item.KindPath,
		Path: &bg,
		Fill: fill,
	}))

	root.Children = append(root.Children, lowerFrame(&page.Frame, idx, diags)...)
	return root
}

// lowerFrame lowers a frame's items into placed children. Positions stay
// relative to the frame origin, so a repeated sub-tree addresses
// identically wherever it occurs.
func lowerFrame(frame *doc.Frame, page int, diags *errors.Diagnostics) []item.Child {
	var out []item.Child
	for _, pos := range frame.Items {
		out = appendLowered(out, pos, page, diags)
	}
	return out
}

func appendLowered(out []item.Child, pos doc.Positioned, page int, diags *errors.Diagnostics) []item.Child {
	switch v := pos.Item.(type) {
	case *doc.Group:
		return appendGroup(out, pos.Pos, v, page, diags)
	case *doc.TextRun:
		if it := lowerText(v, page, diags); it != nil {
			out = append(out, item.Placed(pos.Pos.X, pos.Pos.Y, it))
		}
	case *doc.Shape:
		if it := lowerShape(v); it != nil {
			out = append(out, item.Placed(pos.Pos.X, pos.Pos.Y, it))
		}
	case *doc.Image:
		if it := lowerImage(v, page, diags); it != nil {
			out = append(out, item.Placed(pos.Pos.X, pos.Pos.Y, it))
		}
	case *doc.Link:
		if it := lowerLink(v); it != nil {
			out = append(out, item.Placed(pos.Pos.X, pos.Pos.Y, it))
		}
	case *doc.Tag:
		// Non-visual: dropped so it cannot defeat deduplication.
	}
	return out
}

// appendGroup lowers a nested group. A soft group with an identity
// transform, no clip and no label is redundant nesting: its children are
// spliced into the parent with the group offset folded into their
// placements.
func appendGroup(out []item.Child, pos doc.Point, grp *doc.Group, page int, diags *errors.Diagnostics) []item.Child {
	children := lowerFrame(&grp.Frame, page, diags)
	if len(children) == 0 {
		// Nothing visible inside; the group itself is not lowered.
		return out
	}

	// An unset transform means identity, so a document that never
	// mentions transforms behaves as expected.
	transform := grp.Transform
	if transform == (doc.Transform{}) {
		transform = doc.Identity()
	}

	collapsible := !grp.Hard && grp.Clip == nil && grp.Label == "" && transform.IsIdentity()
	if collapsible {
		for _, c := range children {
			c.Placement = doc.Translate(pos.X, pos.Y).Mul(c.Placement)
			out = append(out, c)
		}
		return out
	}

	it := &item.Item{
		Kind:     item.KindGroup,
		Children: children,
		Clip:     grp.Clip,
		Debug:    grp.Label,
	}
	if grp.Hard {
		it.Size = grp.Frame.Size
	}
	placement := doc.Translate(pos.X, pos.Y).Mul(transform)
	return append(out, item.PlacedAt(placement, it))
}

// lowerText lowers a text run into a text group owning one glyph item per
// glyph. Glyph outlines are anchored at the glyph origin and carry the
// run's fill, so the same glyph shape deduplicates across the document
// regardless of where it appears.
func lowerText(run *doc.TextRun, page int, diags *errors.Diagnostics) *item.Item {
	if len(run.Glyphs) == 0 {
		return nil
	}

	class := item.ClassText
	if run.Fallback {
		class = item.ClassTextFallback
	}
	grp := &item.Item{
		Kind:  item.KindGroup,
		Class: class,
		Text: &item.TextInfo{
			Text:        run.Text,
			Fallback:    run.Fallback,
			TargetWidth: run.TargetWidth,
		},
	}

	missing := false
	for i := range run.Glyphs {
		g := &run.Glyphs[i]
		if g.Outline == nil {
			// Unembeddable font: degrade this glyph to a sized
			// placeholder instead of dropping the run.
			missing = true
			if g.Advance <= 0 || run.Size <= 0 {
				continue
			}
			ph := &item.Item{
				Kind:  item.KindPlaceholder,
				Class: item.ClassPlaceholder,
				Size:  doc.Size{W: g.Advance, H: run.Size},
			}
			grp.Children = append(grp.Children, item.Placed(g.Offset.X, g.Offset.Y-run.Size, ph))
			continue
		}
		if g.Outline.IsEmpty() {
			// Whitespace glyphs carry no visible content.
			continue
		}
		fill := run.Fill
		glyph := &item.Item{
			Kind: item.KindGlyph,
			Path: g.Outline,
			Fill: &fill,
		}
		grp.Children = append(grp.Children, item.Placed(g.Offset.X, g.Offset.Y, glyph))
	}

	if missing {
		diags.Add(stage, errors.ErrCodeFontUnresolved, page,
			"font %q has no embeddable outlines; degraded to placeholders", run.Font)
	}
	if len(grp.Children) == 0 {
		return nil
	}
	return grp
}

// lowerShape lowers a filled/stroked geometry, dropping invisible and
// degenerate shapes as a normalization rather than an error.
func lowerShape(s *doc.Shape) *item.Item {
	if s.Fill == nil && s.Stroke == nil {
		return nil
	}
	if s.Geometry.IsEmpty() {
		return nil
	}
	if b := s.Geometry.Bounds(); b.IsEmpty() && s.Stroke == nil {
		// A zero-area fill paints nothing. A stroked hairline still
		// renders, so only the fill-only case is degenerate.
		return nil
	}
	geom := s.Geometry
	return &item.Item{
		Kind:   item.KindPath,
		Path:   &geom,
		Fill:   s.Fill,
		Stroke: s.Stroke,
	}
}

func lowerImage(img *doc.Image, page int, diags *errors.Diagnostics) *item.Item {
	if img.Size.IsZero() {
		return nil
	}
	if len(img.Data) == 0 {
		diags.Add(stage, errors.ErrCodeImageUndecodable, page,
			"image (%s) has no decodable data; degraded to placeholder", img.Format)
		return &item.Item{
			Kind:  item.KindPlaceholder,
			Class: item.ClassPlaceholder,
			Size:  img.Size,
		}
	}
	return &item.Item{
		Kind: item.KindImage,
		Image: &item.Image{
			Format: img.Format,
			Data:   img.Data,
			Alt:    img.Alt,
		},
		Size: img.Size,
	}
}

func lowerLink(l *doc.Link) *item.Item {
	if l.Size.IsZero() {
		return nil
	}
	target := &item.Target{URL: l.URL}
	if !l.IsExternal() {
		target.Page = l.Page
		target.X = l.Pos.X
		target.Y = l.Pos.Y
	}
	return &item.Item{
		Kind:  item.KindLink,
		Class: item.ClassLink,
		Link:  target,
		Size:  l.Size,
	}
}
