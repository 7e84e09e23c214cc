package codegen

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mbolt/svgpress/pkg/doc"
	"github.com/mbolt/svgpress/pkg/errors"
	"github.com/mbolt/svgpress/pkg/flatten"
	"github.com/mbolt/svgpress/pkg/item"
)

// noopFragment renders nothing. It stands in for a definition whose body
// could not be generated, so siblings and parents still assemble.
const noopFragment = `<g/>`

// emitBody renders the SVG text for one definition. Children are embedded
// either inline or as <use> references to their definition ids, depending
// on the placement decision recorded in their fragments.
func (r *genRun) emitBody(def *flatten.Def) (string, error) {
	it := def.Content
	switch it.Kind {
	case item.KindPath, item.KindGlyph:
		return r.emitPath(it)
	case item.KindImage:
		return r.emitImage(it)
	case item.KindGroup:
		return r.emitGroup(def)
	case item.KindLink:
		return r.emitLink(def)
	case item.KindPlaceholder:
		return emitPlaceholder(it), nil
	}
	return "", errors.New(errors.ErrCodeMalformedItem, "unknown item kind %d", it.Kind)
}

func (r *genRun) emitPath(it *item.Item) (string, error) {
	if it.Path.IsEmpty() {
		return "", errors.New(errors.ErrCodeMalformedItem, "path item without geometry")
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, `<path d="%s"`, pathData(it.Path))
	writePaintAttrs(&b, it.Fill, it.Stroke)
	b.WriteString("/>")
	return b.String(), nil
}

func (r *genRun) emitImage(it *item.Item) (string, error) {
	if it.Image == nil || len(it.Image.Data) == 0 {
		return "", errors.New(errors.ErrCodeImageUndecodable, "image item without data")
	}
	if it.Size.IsZero() {
		return "", errors.New(errors.ErrCodeMalformedItem, "image item without size")
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, `<image width="%s" height="%s" preserveAspectRatio="none" href="data:image/%s;base64,`,
		num(it.Size.W), num(it.Size.H), it.Image.Format)
	enc := base64.NewEncoder(base64.StdEncoding, &b)
	enc.Write(it.Image.Data)
	enc.Close()
	b.WriteString(`"`)
	if it.Image.Alt != "" {
		fmt.Fprintf(&b, ` aria-label="%s"`, escapeAttr(it.Image.Alt))
	}
	b.WriteString("/>")
	return b.String(), nil
}

func (r *genRun) emitGroup(def *flatten.Def) (string, error) {
	it := def.Content
	var b bytes.Buffer
	b.WriteString("<g")
	if it.Class != "" {
		fmt.Fprintf(&b, ` class="%s"`, escapeAttr(it.Class))
	}
	if it.Text != nil {
		if it.Text.Text != "" {
			fmt.Fprintf(&b, ` aria-label="%s"`, escapeAttr(it.Text.Text))
		}
		if it.Text.Fallback {
			fmt.Fprintf(&b, ` data-target-width="%s"`, num(it.Text.TargetWidth))
		}
	}
	if it.Clip != nil {
		// The clip path itself lives in the shared defs section; the
		// id derives from the owning definition's address.
		fmt.Fprintf(&b, ` clip-path="url(#%s)"`, def.Addr.DefID('c'))
	}
	b.WriteString(">")
	if err := r.emitChildren(&b, def); err != nil {
		return "", err
	}
	b.WriteString("</g>")
	return b.String(), nil
}

func (r *genRun) emitLink(def *flatten.Def) (string, error) {
	it := def.Content
	if it.Link == nil {
		return "", errors.New(errors.ErrCodeMalformedItem, "link item without target")
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, `<a class="%s"`, item.ClassLink)
	if it.Link.URL != "" {
		fmt.Fprintf(&b, ` href="%s"`, escapeAttr(it.Link.URL))
	} else {
		// Document-internal target. The href is inert; the consumer
		// reads the location from the data attributes.
		fmt.Fprintf(&b, ` href="#" data-loc-page="%d" data-loc-x="%s" data-loc-y="%s"`,
			it.Link.Page, num(it.Link.X), num(it.Link.Y))
	}
	b.WriteString(">")
	if err := r.emitChildren(&b, def); err != nil {
		return "", err
	}
	// An invisible rect spanning the region keeps the whole area
	// clickable even where no child paints.
	if !it.Size.IsZero() {
		fmt.Fprintf(&b, `<rect width="%s" height="%s" fill="none" pointer-events="all"/>`,
			num(it.Size.W), num(it.Size.H))
	}
	b.WriteString("</a>")
	return b.String(), nil
}

// emitChildren writes placed children, inlining small single-use fragments
// and referencing shared ones through <use>. The decision taken here is
// exactly the one fingerprinted into the parent's cache key.
func (r *genRun) emitChildren(b *bytes.Buffer, def *flatten.Def) error {
	for _, c := range def.Children {
		frag := r.fragment(c.Addr)
		if frag == nil {
			return errors.New(errors.ErrCodeInternal,
				"child fragment %s not generated", c.Addr.Short())
		}
		if frag.Shared {
			b.WriteString(`<use href="#` + frag.DefID + `"`)
			if t := transformAttr(c.Placement); t != "" {
				fmt.Fprintf(b, ` transform="%s"`, t)
			}
			b.WriteString("/>")
			continue
		}
		if c.Placement.IsIdentity() {
			b.WriteString(frag.Body)
			continue
		}
		fmt.Fprintf(b, `<g transform="%s">%s</g>`, transformAttr(c.Placement), frag.Body)
	}
	return nil
}

// emitPlaceholder renders degraded content as a crossed box so the reader
// sees that something is missing rather than silently losing it.
func emitPlaceholder(it *item.Item) string {
	w, h := it.Size.W, it.Size.H
	if w <= 0 {
		w = 8
	}
	if h <= 0 {
		h = 8
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, `<g class="%s">`, item.ClassPlaceholder)
	fmt.Fprintf(&b, `<rect width="%s" height="%s" fill="none" stroke="#808080" stroke-width="0.5"/>`,
		num(w), num(h))
	fmt.Fprintf(&b, `<path d="M0 0L%s %sM%s 0L0 %s" stroke="#808080" stroke-width="0.5"/>`,
		num(w), num(h), num(w), num(h))
	b.WriteString("</g>")
	return b.String()
}

// writePaintAttrs appends fill and stroke attributes. Gradients reference
// their shared definition by id; the gradient body itself is collected into
// the global defs section.
func writePaintAttrs(b *bytes.Buffer, fill *doc.Paint, stroke *doc.Stroke) {
	if fill == nil {
		b.WriteString(` fill="none"`)
	} else if fill.Gradient != nil {
		fmt.Fprintf(b, ` fill="url(#%s)"`, gradientID(fill.Gradient))
	} else {
		fmt.Fprintf(b, ` fill="%s"`, fill.Color.Hex())
		if !fill.Color.IsOpaque() {
			fmt.Fprintf(b, ` fill-opacity="%s"`, num(fill.Color.Opacity()))
		}
	}
	if stroke == nil {
		return
	}
	if stroke.Paint.Gradient != nil {
		fmt.Fprintf(b, ` stroke="url(#%s)"`, gradientID(stroke.Paint.Gradient))
	} else {
		fmt.Fprintf(b, ` stroke="%s"`, stroke.Paint.Color.Hex())
		if !stroke.Paint.Color.IsOpaque() {
			fmt.Fprintf(b, ` stroke-opacity="%s"`, num(stroke.Paint.Color.Opacity()))
		}
	}
	fmt.Fprintf(b, ` stroke-width="%s"`, num(stroke.Width))
	if stroke.Cap != "" && stroke.Cap != "butt" {
		fmt.Fprintf(b, ` stroke-linecap="%s"`, stroke.Cap)
	}
	if stroke.Join != "" && stroke.Join != "miter" {
		fmt.Fprintf(b, ` stroke-linejoin="%s"`, stroke.Join)
	}
	if len(stroke.DashArray) > 0 {
		parts := make([]string, len(stroke.DashArray))
		for i, d := range stroke.DashArray {
			parts[i] = num(d)
		}
		fmt.Fprintf(b, ` stroke-dasharray="%s"`, strings.Join(parts, " "))
		if stroke.DashPhase != 0 {
			fmt.Fprintf(b, ` stroke-dashoffset="%s"`, num(stroke.DashPhase))
		}
	}
}

// gradientID derives a stable definition id from the gradient's content, so
// identical gradients across unrelated items collapse to one definition.
func gradientID(g *doc.Gradient) string {
	h := sha256.New()
	var buf [8]byte
	writeF := func(f float64) {
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(f))
		h.Write(buf[:])
	}
	writeF(g.From.X)
	writeF(g.From.Y)
	writeF(g.To.X)
	writeF(g.To.Y)
	for _, s := range g.Stops {
		writeF(s.Offset)
		h.Write([]byte{s.Color.R, s.Color.G, s.Color.B, s.Color.A})
	}
	sum := h.Sum(nil)
	return "f" + hex.EncodeToString(sum[:6])
}

// gradientBody renders a shared gradient definition. Gradients live in the
// unit square of the painted geometry (objectBoundingBox units), so one
// definition serves every size the gradient is applied at.
func gradientBody(id string, g *doc.Gradient) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, `<linearGradient id="%s" gradientUnits="objectBoundingBox" x1="%s" y1="%s" x2="%s" y2="%s">`,
		id, num(g.From.X), num(g.From.Y), num(g.To.X), num(g.To.Y))
	for _, s := range g.Stops {
		fmt.Fprintf(&b, `<stop offset="%s" stop-color="%s"`, num(s.Offset), s.Color.Hex())
		if !s.Color.IsOpaque() {
			fmt.Fprintf(&b, ` stop-opacity="%s"`, num(s.Color.Opacity()))
		}
		b.WriteString("/>")
	}
	b.WriteString("</linearGradient>")
	return b.String()
}

// clipBody renders a shared clip-path definition.
func clipBody(id string, p *doc.Path) string {
	return fmt.Sprintf(`<clipPath id="%s"><path d="%s"/></clipPath>`, id, pathData(p))
}

// pathData renders path geometry as an SVG path data string.
func pathData(p *doc.Path) string {
	var b strings.Builder
	for _, s := range p.Segments {
		switch s.Op {
		case doc.MoveTo:
			b.WriteByte('M')
			writePoint(&b, s.End)
		case doc.LineTo:
			b.WriteByte('L')
			writePoint(&b, s.End)
		case doc.CubicTo:
			b.WriteByte('C')
			writePoint(&b, s.P1)
			b.WriteByte(' ')
			writePoint(&b, s.P2)
			b.WriteByte(' ')
			writePoint(&b, s.End)
		case doc.ClosePath:
			b.WriteByte('Z')
		}
	}
	return b.String()
}

func writePoint(b *strings.Builder, p doc.Point) {
	b.WriteString(num(p.X))
	b.WriteByte(' ')
	b.WriteString(num(p.Y))
}

// transformAttr renders a placement as an SVG transform attribute value.
// Identity yields an empty string so callers can omit the attribute.
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

// num formats a coordinate deterministically: rounded to four decimals with
// trailing zeros dropped. Rounding absorbs float noise from transform
// folding so repeated exports produce byte-identical text.
func num(f float64) string {
	r := math.Round(f*10000) / 10000
	if r == 0 {
		// Normalize negative zero.
		r = 0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// escapeAttr escapes a string for use inside a double-quoted XML attribute.
func escapeAttr(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
