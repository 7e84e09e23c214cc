// Package assemble stitches generated fragments into one self-contained
// SVG document: a header sized to the page stack, a shared defs section
// for multiply-referenced definitions, and one page group per reference in
// document order. Assembly is a pure function of its inputs, so identical
// module and fragments always produce byte-identical output.
package assemble

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/mbolt/svgpress/pkg/codegen"
	"github.com/mbolt/svgpress/pkg/doc"
	"github.com/mbolt/svgpress/pkg/errors"
	"github.com/mbolt/svgpress/pkg/flatten"
	"github.com/mbolt/svgpress/pkg/item"
)

// DefaultPageGap is the vertical space between stacked pages.
const DefaultPageGap = 8.0

// Options tunes assembly.
type Options struct {
	// PageGap is the vertical gap between consecutive pages. Negative
	// values are treated as zero; zero means DefaultPageGap.
	PageGap float64
}

func (o *Options) defaults() {
	if o.PageGap == 0 {
		o.PageGap = DefaultPageGap
	}
	if o.PageGap < 0 {
		o.PageGap = 0
	}
}

// Assemble renders the final SVG document from a flattened module and its
// generated fragments. Pages stack vertically in reference order,
// separated by the page gap.
func Assemble(m *flatten.Module, gen *codegen.Output, opts Options) (string, error) {
	opts.defaults()

	w, h := extent(m.Refs, opts.PageGap)

	var b bytes.Buffer
	b.Grow(estimate(m, gen))

	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 %s %s" width="%spt" height="%spt">`,
		num(w), num(h), num(w), num(h))

	if err := writeDefs(&b, m, gen); err != nil {
		return "", err
	}

	y := 0.0
	for i, ref := range m.Refs {
		frag, ok := gen.Frags[ref.Addr]
		if !ok {
			return "", errors.New(errors.ErrCodeInternal,
				"no fragment for page reference %s", ref.Addr.Short())
		}
		placement := doc.Translate(0, y).Mul(ref.Placement)
		fmt.Fprintf(&b, `<g class="%s" data-page="%d" data-width="%s" data-height="%s"`,
			item.ClassPage, ref.Page, num(ref.Size.W), num(ref.Size.H))
		if t := transformAttr(placement); t != "" {
			fmt.Fprintf(&b, ` transform="%s"`, t)
		}
		b.WriteString(">")
		if frag.Shared {
			fmt.Fprintf(&b, `<use href="#%s"/>`, frag.DefID)
		} else {
			b.WriteString(frag.Body)
		}
		b.WriteString("</g>")
		y += ref.Size.H
		if i < len(m.Refs)-1 {
			y += opts.PageGap
		}
	}

	b.WriteString("</svg>")
	return b.String(), nil
}

// writeDefs emits the shared defs section: gradients and clips first, then
// promoted item fragments in the module's canonical definition order.
// Nothing is emitted when the document needs no shared definitions.
func writeDefs(b *bytes.Buffer, m *flatten.Module, gen *codegen.Output) error {
	var shared []*codegen.Fragment
	for _, def := range m.Defs() {
		frag, ok := gen.Frags[def.Addr]
		if !ok {
			return errors.New(errors.ErrCodeInternal,
				"no fragment for definition %s", def.Addr.Short())
		}
		if frag.Shared {
			shared = append(shared, frag)
		}
	}
	if len(shared) == 0 && len(gen.Gradients) == 0 && len(gen.Clips) == 0 {
		return nil
	}

	b.WriteString("<defs>")
	for _, d := range gen.Gradients {
		b.WriteString(d.Body)
	}
	for _, d := range gen.Clips {
		b.WriteString(d.Body)
	}
	// Defs() returns the canonical order, a pure function of document
	// content, so shared fragments keep a stable position across runs.
	for _, frag := range shared {
		fmt.Fprintf(b, `<g id="%s">%s</g>`, frag.DefID, frag.Body)
	}
	b.WriteString("</defs>")
	return nil
}

// extent computes the stacked document size: widest page by total height
// including gaps.
func extent(refs []flatten.Ref, gap float64) (w, h float64) {
	for i, r := range refs {
		if r.Size.W > w {
			w = r.Size.W
		}
		h += r.Size.H
		if i < len(refs)-1 {
			h += gap
		}
	}
	return w, h
}

// estimate pre-sizes the output buffer from fragment lengths plus a per-
// element envelope allowance. An undershoot just falls back to the
// buffer's own growth.
func estimate(m *flatten.Module, gen *codegen.Output) int {
	n := 256
	for _, frag := range gen.Frags {
		n += len(frag.Body) + 64
	}
	for _, d := range gen.Gradients {
		n += len(d.Body)
	}
	for _, d := range gen.Clips {
		n += len(d.Body)
	}
	n += len(m.Refs) * 128
	return n
}

func transformAttr(t doc.Transform) string {
	if t.IsIdentity() {
		return ""
	}
	if t.IsTranslation() {
		return fmt.Sprintf("translate(%s %s)", num(t.Tx), num(t.Ty))
	}
	return fmt.Sprintf("matrix(%s %s %s %s %s %s)",
		num(t.A), num(t.B), num(t.C), num(t.D), num(t.Tx), num(t.Ty))
}

func num(f float64) string {
	r := math.Round(f*10000) / 10000
	if r == 0 {
		r = 0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}
