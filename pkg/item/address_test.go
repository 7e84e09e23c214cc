package item

import (
	"testing"

	"github.com/mbolt/svgpress/pkg/doc"
)

func iconPath() *doc.Path {
	p := &doc.Path{}
	p.Move(doc.Point{X: 0, Y: 0})
	p.Line(doc.Point{X: 10, Y: 0})
	p.Cubic(doc.Point{X: 12, Y: 4}, doc.Point{X: 10, Y: 8}, doc.Point{X: 0, Y: 8})
	p.Close()
	return p
}

func pathItem() *Item {
	fill := doc.Solid(doc.Black)
	return &Item{Kind: KindPath, Path: iconPath(), Fill: &fill}
}

func TestAddressDeterministic(t *testing.T) {
	a := AddressTree(pathItem())
	b := AddressTree(pathItem())
	if a != b {
		t.Errorf("identical items produced different addresses: %s vs %s", a.Short(), b.Short())
	}
	if a.IsZero() {
		t.Error("address of a non-empty item is zero")
	}
}

func TestAddressIgnoresPlacement(t *testing.T) {
	// Two groups placing the same child at different offsets must still
	// agree on the child's address; the parents differ.
	child := pathItem()
	g1 := Group(Placed(5, 5, child))
	g2 := Group(Placed(100, 200, child))

	if AddressTree(g1.Children[0].Item) != AddressTree(g2.Children[0].Item) {
		t.Error("child address depends on where the parent placed it")
	}
	if AddressTree(g1) == AddressTree(g2) {
		t.Error("parents with different placements share an address")
	}
}

func TestAddressIgnoresDebug(t *testing.T) {
	a := pathItem()
	b := pathItem()
	b.Debug = "layout-node-47"
	if AddressTree(a) != AddressTree(b) {
		t.Error("Debug field affects the content address")
	}
	if !Equal(a, b) {
		t.Error("Debug field affects structural equality")
	}
}

func TestAddressDistinguishesContent(t *testing.T) {
	base := pathItem()
	red := doc.Solid(doc.RGB(200, 0, 0))

	recolored := pathItem()
	recolored.Fill = &red

	text := &Item{Kind: KindGroup, Class: ClassText, Text: &TextInfo{Text: "hi"}}
	emptyGroup := Group()

	addrs := map[Addr]string{}
	for name, it := range map[string]*Item{
		"base": base, "recolored": recolored, "text": text, "group": emptyGroup,
	} {
		a := AddressTree(it)
		if prev, dup := addrs[a]; dup {
			t.Errorf("%s and %s share an address", name, prev)
		}
		addrs[a] = name
	}
}

func TestAddressChildOrderMatters(t *testing.T) {
	red := doc.Solid(doc.RGB(200, 0, 0))
	a := pathItem()
	b := pathItem()
	b.Fill = &red

	g1 := Group(Placed(0, 0, a), Placed(0, 0, b))
	g2 := Group(Placed(0, 0, b), Placed(0, 0, a))
	if AddressTree(g1) == AddressTree(g2) {
		t.Error("paint order does not affect the group address")
	}
}

func TestAddressNegativeZero(t *testing.T) {
	a := pathItem()
	b := pathItem()
	// Force -0 into a coordinate; the canonical encoding must normalize.
	b.Path.Segments[0].End.X = negZero()
	if AddressTree(a) != AddressTree(b) {
		t.Error("-0 and +0 coordinates address differently")
	}
}

func negZero() float64 {
	z := 0.0
	return -z
}

func TestSalted(t *testing.T) {
	a := AddressTree(pathItem())
	s1 := Salted(a, 1)
	s2 := Salted(a, 2)
	if s1 == a || s2 == a || s1 == s2 {
		t.Error("salting does not produce distinct addresses")
	}
}

func TestParseAddrRoundTrip(t *testing.T) {
	a := AddressTree(pathItem())
	parsed, ok := ParseAddr(a.String())
	if !ok || parsed != a {
		t.Errorf("ParseAddr(%s) = %v, %v", a.String(), parsed.Short(), ok)
	}
	if _, ok := ParseAddr("zz"); ok {
		t.Error("ParseAddr accepted invalid hex")
	}
	if _, ok := ParseAddr("abcd"); ok {
		t.Error("ParseAddr accepted a short address")
	}
}

func TestDefID(t *testing.T) {
	a := AddressTree(pathItem())
	id := a.DefID('g')
	if len(id) != 13 || id[0] != 'g' {
		t.Errorf("DefID = %q, want 'g' plus 12 hex chars", id)
	}
}

func TestEqualDetectsDifferences(t *testing.T) {
	base := pathItem()

	stroked := pathItem()
	stroked.Stroke = &doc.Stroke{Paint: doc.Solid(doc.Black), Width: 1}

	linked := &Item{Kind: KindLink, Link: &Target{URL: "https://example.com"}, Size: doc.Size{W: 10, H: 10}}
	linkedOther := &Item{Kind: KindLink, Link: &Target{URL: "https://example.org"}, Size: doc.Size{W: 10, H: 10}}

	tests := []struct {
		name string
		a, b *Item
		want bool
	}{
		{"same content", base, pathItem(), true},
		{"stroke added", base, stroked, false},
		{"different link targets", linked, linkedOther, false},
		{"kind differs", base, Group(), false},
	}
	for _, tt := range tests {
		if got := Equal(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: Equal = %v, want %v", tt.name, got, tt.want)
		}
	}
}
