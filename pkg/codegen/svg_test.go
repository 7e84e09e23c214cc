package codegen

import (
	"strings"
	"testing"

	"github.com/mbolt/svgpress/pkg/doc"
	"github.com/mbolt/svgpress/pkg/item"
)

func TestNum(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{negZero(), "0"},
		{1, "1"},
		{-1.5, "-1.5"},
		{0.125, "0.125"},
		{3.14159, "3.1416"},
		{100.00001, "100"},
		{-0.00001, "0"},
		{720.5, "720.5"},
	}
	for _, tt := range tests {
		if got := num(tt.in); got != tt.want {
			t.Errorf("num(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func negZero() float64 {
	z := 0.0
	return -z
}

func TestTransformAttr(t *testing.T) {
	tests := []struct {
		name string
		tr   doc.Transform
		want string
	}{
		{"identity omitted", doc.Identity(), ""},
		{"translation", doc.Translate(10, -4.5), "translate(10 -4.5)"},
		{"scale", doc.Scale(2, 3), "matrix(2 0 0 3 0 0)"},
		{"full matrix", doc.Transform{A: 1, B: 0.5, C: -0.5, D: 1, Tx: 3, Ty: 4}, "matrix(1 0.5 -0.5 1 3 4)"},
	}
	for _, tt := range tests {
		if got := transformAttr(tt.tr); got != tt.want {
			t.Errorf("%s: transformAttr = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestPathData(t *testing.T) {
	var p doc.Path
	p.Move(doc.Point{})
	p.Line(doc.Point{X: 10})
	p.Cubic(doc.Point{X: 12, Y: 4}, doc.Point{X: 10, Y: 8}, doc.Point{X: 0, Y: 8})
	p.Close()
	want := "M0 0L10 0C12 4 10 8 0 8Z"
	if got := pathData(&p); got != want {
		t.Errorf("pathData = %q, want %q", got, want)
	}
}

func TestEscapeAttr(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{`a "b" & <c>`, "a &quot;b&quot; &amp; &lt;c&gt;"},
		{"ünïcode", "ünïcode"},
	}
	for _, tt := range tests {
		if got := escapeAttr(tt.in); got != tt.want {
			t.Errorf("escapeAttr(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGradientID(t *testing.T) {
	g := &doc.Gradient{
		From:  doc.Point{X: 0, Y: 0},
		To:    doc.Point{X: 1, Y: 1},
		Stops: []doc.GradientStop{{Offset: 0, Color: doc.White}, {Offset: 1, Color: doc.Black}},
	}
	same := &doc.Gradient{
		From:  doc.Point{X: 0, Y: 0},
		To:    doc.Point{X: 1, Y: 1},
		Stops: []doc.GradientStop{{Offset: 0, Color: doc.White}, {Offset: 1, Color: doc.Black}},
	}
	other := &doc.Gradient{
		From:  doc.Point{X: 0, Y: 0},
		To:    doc.Point{X: 0, Y: 1},
		Stops: []doc.GradientStop{{Offset: 0, Color: doc.White}, {Offset: 1, Color: doc.Black}},
	}
	id := gradientID(g)
	if len(id) != 13 || id[0] != 'f' {
		t.Errorf("gradientID = %q, want 'f' plus 12 hex chars", id)
	}
	if gradientID(same) != id {
		t.Error("identical gradients got different ids")
	}
	if gradientID(other) == id {
		t.Error("different gradients share an id")
	}
}

func TestGradientBody(t *testing.T) {
	g := &doc.Gradient{
		From: doc.Point{X: 0, Y: 0},
		To:   doc.Point{X: 1, Y: 0},
		Stops: []doc.GradientStop{
			{Offset: 0, Color: doc.RGB(255, 0, 0)},
			{Offset: 1, Color: doc.Color{R: 0, G: 0, B: 255, A: 127}},
		},
	}
	body := gradientBody("f123", g)
	for _, want := range []string{
		`<linearGradient id="f123" gradientUnits="objectBoundingBox"`,
		`x1="0" y1="0" x2="1" y2="0"`,
		`<stop offset="0" stop-color="#ff0000"/>`,
		`stop-color="#0000ff" stop-opacity="0.498"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("gradient body lacks %q:\n%s", want, body)
		}
	}
}

func TestEmitPlaceholder(t *testing.T) {
	got := emitPlaceholder(&item.Item{Kind: item.KindPlaceholder, Size: doc.Size{W: 20, H: 10}})
	for _, want := range []string{
		`class="placeholder"`,
		`<rect width="20" height="10"`,
		`stroke="#808080"`,
		`M0 0L20 10M20 0L0 10`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("placeholder lacks %q:\n%s", want, got)
		}
	}
	// A size-less placeholder still renders visibly.
	if got := emitPlaceholder(&item.Item{Kind: item.KindPlaceholder}); !strings.Contains(got, `width="8"`) {
		t.Errorf("zero-size placeholder = %s", got)
	}
}
