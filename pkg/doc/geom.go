package doc

import "math"

// Point is a position in points.
type Point struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// Size is a width/height pair in points.
type Size struct {
	W float64 `json:"w" bson:"w"`
	H float64 `json:"h" bson:"h"`
}

// IsZero reports whether the size has no area.
func (s Size) IsZero() bool { return s.W <= 0 || s.H <= 0 }

// Rect is an axis-aligned rectangle.
type Rect struct {
	Min Point `json:"min" bson:"min"`
	Max Point `json:"max" bson:"max"`
}

// Width returns the horizontal extent.
func (r Rect) Width() float64 { return r.Max.X - r.Min.X }

// Height returns the vertical extent.
func (r Rect) Height() float64 { return r.Max.Y - r.Min.Y }

// IsEmpty reports whether the rectangle has no area.
func (r Rect) IsEmpty() bool { return r.Max.X <= r.Min.X || r.Max.Y <= r.Min.Y }

// Union returns the smallest rectangle covering r and o.
func (r Rect) Union(o Rect) Rect {
	return Rect{
		Min: Point{X: math.Min(r.Min.X, o.Min.X), Y: math.Min(r.Min.Y, o.Min.Y)},
		Max: Point{X: math.Max(r.Max.X, o.Max.X), Y: math.Max(r.Max.Y, o.Max.Y)},
	}
}

// Transform is a 2D affine transform:
//
//	| A C Tx |
//	| B D Ty |
type Transform struct {
	A  float64 `json:"a" bson:"a"`
	B  float64 `json:"b" bson:"b"`
	C  float64 `json:"c" bson:"c"`
	D  float64 `json:"d" bson:"d"`
	Tx float64 `json:"tx" bson:"tx"`
	Ty float64 `json:"ty" bson:"ty"`
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{A: 1, D: 1}
}

// Translate returns a pure translation.
func Translate(x, y float64) Transform {
	return Transform{A: 1, D: 1, Tx: x, Ty: y}
}

// Scale returns a pure scale.
func Scale(sx, sy float64) Transform {
	return Transform{A: sx, D: sy}
}

// IsIdentity reports whether the transform has no effect.
func (t Transform) IsIdentity() bool {
	return t == Transform{A: 1, D: 1}
}

// IsTranslation reports whether the transform only translates.
func (t Transform) IsTranslation() bool {
	return t.A == 1 && t.B == 0 && t.C == 0 && t.D == 1
}

// Mul returns the transform that applies o first, then t.
func (t Transform) Mul(o Transform) Transform {
	return Transform{
		A:  t.A*o.A + t.C*o.B,
		B:  t.B*o.A + t.D*o.B,
		C:  t.A*o.C + t.C*o.D,
		D:  t.B*o.C + t.D*o.D,
		Tx: t.A*o.Tx + t.C*o.Ty + t.Tx,
		Ty: t.B*o.Tx + t.D*o.Ty + t.Ty,
	}
}

// PreTranslate returns t with a translation applied before it.
func (t Transform) PreTranslate(x, y float64) Transform {
	return t.Mul(Translate(x, y))
}

// Apply transforms a point.
func (t Transform) Apply(p Point) Point {
	return Point{
		X: t.A*p.X + t.C*p.Y + t.Tx,
		Y: t.B*p.X + t.D*p.Y + t.Ty,
	}
}

// Path segment operators.
const (
	MoveTo SegOp = iota
	LineTo
	CubicTo
	ClosePath
)

// SegOp identifies a path segment operator.
type SegOp uint8

// Segment is one path segment. P1 and P2 are the cubic control points of a
// CubicTo; End is the segment end point. MoveTo and LineTo only use End,
// ClosePath uses none.
type Segment struct {
	Op     SegOp `json:"op" bson:"op"`
	P1     Point `json:"p1,omitempty" bson:"p1,omitempty"`
	P2     Point `json:"p2,omitempty" bson:"p2,omitempty"`
	End    Point `json:"end,omitempty" bson:"end,omitempty"`
}

// Path is a sequence of segments describing an outline.
type Path struct {
	Segments []Segment `json:"segments" bson:"segments"`
}

// Move appends a MoveTo segment.
func (p *Path) Move(to Point) { p.Segments = append(p.Segments, Segment{Op: MoveTo, End: to}) }

// Line appends a LineTo segment.
func (p *Path) Line(to Point) { p.Segments = append(p.Segments, Segment{Op: LineTo, End: to}) }

// Cubic appends a CubicTo segment.
func (p *Path) Cubic(c1, c2, to Point) {
	p.Segments = append(p.Segments, Segment{Op: CubicTo, P1: c1, P2: c2, End: to})
}

// Close appends a ClosePath segment.
func (p *Path) Close() { p.Segments = append(p.Segments, Segment{Op: ClosePath}) }

// IsEmpty reports whether the path has no segments.
func (p *Path) IsEmpty() bool { return p == nil || len(p.Segments) == 0 }

// Bounds returns the control-point bounding box of the path. For cubic
// segments this over-approximates the true bounds, which is sufficient for
// degeneracy checks.
func (p *Path) Bounds() Rect {
	if p.IsEmpty() {
		return Rect{}
	}
	r := Rect{
		Min: Point{X: math.Inf(1), Y: math.Inf(1)},
		Max: Point{X: math.Inf(-1), Y: math.Inf(-1)},
	}
	grow := func(pt Point) {
		r.Min.X = math.Min(r.Min.X, pt.X)
		r.Min.Y = math.Min(r.Min.Y, pt.Y)
		r.Max.X = math.Max(r.Max.X, pt.X)
		r.Max.Y = math.Max(r.Max.Y, pt.Y)
	}
	for _, s := range p.Segments {
		switch s.Op {
		case MoveTo, LineTo:
			grow(s.End)
		case CubicTo:
			grow(s.P1)
			grow(s.P2)
			grow(s.End)
		}
	}
	return r
}

// RectPath returns a closed rectangular path of the given size anchored at
// the origin.
func RectPath(size Size) Path {
	var p Path
	p.Move(Point{})
	p.Line(Point{X: size.W})
	p.Line(Point{X: size.W, Y: size.H})
	p.Line(Point{Y: size.H})
	p.Close()
	return p
}
