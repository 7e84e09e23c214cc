package item

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"

	"github.com/mbolt/svgpress/pkg/doc"
)

// Addr is a content address: a SHA-256 digest of an item's canonical
// encoding. Two items with equal addresses are interchangeable in generated
// output (guarded by a structural equality check on insertion, see package
// flatten).
type Addr [32]byte

// ZeroAddr is the invalid address.
var ZeroAddr Addr

// IsZero reports whether the address is unset.
func (a Addr) IsZero() bool { return a == ZeroAddr }

// String returns the full hex form.
func (a Addr) String() string { return hex.EncodeToString(a[:]) }

// Short returns a 12-character hex prefix, used in logs and def ids.
func (a Addr) Short() string { return hex.EncodeToString(a[:6]) }

// DefID returns the SVG definition id for this address: a one-letter kind
// prefix followed by a hex address prefix. Glyphs use "g", clips "c",
// gradients "f" and shared items "d".
func (a Addr) DefID(prefix byte) string {
	return string(prefix) + a.Short()
}

// ParseAddr decodes the full hex form produced by String.
func ParseAddr(s string) (Addr, bool) {
	var a Addr
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(a) {
		return ZeroAddr, false
	}
	copy(a[:], b)
	return a, true
}

// Field tags of the canonical encoding. Every field written into the digest
// is preceded by its tag so that adjacent optional fields cannot alias.
const (
	tagKind  = 0x01
	tagClass = 0x02
	tagClip  = 0x03
	tagPath  = 0x04
	tagFill  = 0x05
	tagStrk  = 0x06
	tagImage = 0x07
	tagLink  = 0x08
	tagSize  = 0x09
	tagText  = 0x0a
	tagChild = 0x0b
	tagSalt  = 0x0c
)

// Address computes the content address of it given its children's
// already-computed addresses, composing them Merkle-style with the item's
// own content. len(children) must equal len(it.Children).
//
// The computation is a pure function of content: it never reads pointers,
// traversal state or the Debug field, so the same structure always yields
// the same address in any pass and any process.
func Address(it *Item, children []Addr) Addr {
	h := sha256.New()
	writeItem(h, it, children)
	var a Addr
	h.Sum(a[:0])
	return a
}

// AddressTree computes the address of a whole item tree recursively. It is a
// convenience for tests and small inputs; the flattening stage computes
// addresses bottom-up instead, so sibling sub-trees can hash in parallel.
func AddressTree(it *Item) Addr {
	children := make([]Addr, len(it.Children))
	for i, c := range it.Children {
		children[i] = AddressTree(c.Item)
	}
	return Address(it, children)
}

// Salted derives a distinct address from a by mixing in a disambiguation
// counter. Used when a hash collision between structurally different items
// is detected: the colliding item keeps its identity at the cost of one
// missed dedup.
func Salted(a Addr, n uint64) Addr {
	h := sha256.New()
	h.Write([]byte{tagSalt})
	h.Write(a[:])
	writeUint(h, n)
	var out Addr
	h.Sum(out[:0])
	return out
}

func writeItem(h hash.Hash, it *Item, children []Addr) {
	h.Write([]byte{tagKind, byte(it.Kind)})
	writeString(h, tagClass, it.Class)
	if it.Clip != nil {
		h.Write([]byte{tagClip})
		writePath(h, it.Clip)
	}
	if it.Path != nil {
		h.Write([]byte{tagPath})
		writePath(h, it.Path)
	}
	if it.Fill != nil {
		h.Write([]byte{tagFill})
		writePaint(h, it.Fill)
	}
	if it.Stroke != nil {
		h.Write([]byte{tagStrk})
		writePaint(h, &it.Stroke.Paint)
		writeFloat(h, it.Stroke.Width)
		writeString(h, 0, it.Stroke.Cap)
		writeString(h, 0, it.Stroke.Join)
		writeUint(h, uint64(len(it.Stroke.DashArray)))
		for _, d := range it.Stroke.DashArray {
			writeFloat(h, d)
		}
		writeFloat(h, it.Stroke.DashPhase)
	}
	if it.Image != nil {
		h.Write([]byte{tagImage})
		writeString(h, 0, it.Image.Format)
		writeUint(h, uint64(len(it.Image.Data)))
		h.Write(it.Image.Data)
		writeString(h, 0, it.Image.Alt)
	}
	if it.Link != nil {
		h.Write([]byte{tagLink})
		writeString(h, 0, it.Link.URL)
		writeUint(h, uint64(it.Link.Page))
		writeFloat(h, it.Link.X)
		writeFloat(h, it.Link.Y)
	}
	if it.Size != (doc.Size{}) {
		h.Write([]byte{tagSize})
		writeFloat(h, it.Size.W)
		writeFloat(h, it.Size.H)
	}
	if it.Text != nil {
		h.Write([]byte{tagText})
		writeString(h, 0, it.Text.Text)
		if it.Text.Fallback {
			h.Write([]byte{1})
			writeFloat(h, it.Text.TargetWidth)
		} else {
			h.Write([]byte{0})
		}
	}
	for i, c := range it.Children {
		h.Write([]byte{tagChild})
		writeTransform(h, c.Placement)
		h.Write(children[i][:])
	}
}

func writeString(h hash.Hash, tag byte, s string) {
	if tag != 0 {
		h.Write([]byte{tag})
	}
	writeUint(h, uint64(len(s)))
	h.Write([]byte(s))
}

func writeUint(h hash.Hash, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

func writeFloat(h hash.Hash, f float64) {
	// Normalize negative zero so -0.0 and 0.0 address identically.
	if f == 0 {
		f = 0
	}
	writeUint(h, math.Float64bits(f))
}

func writeTransform(h hash.Hash, t doc.Transform) {
	writeFloat(h, t.A)
	writeFloat(h, t.B)
	writeFloat(h, t.C)
	writeFloat(h, t.D)
	writeFloat(h, t.Tx)
	writeFloat(h, t.Ty)
}

func writePath(h hash.Hash, p *doc.Path) {
	writeUint(h, uint64(len(p.Segments)))
	for _, s := range p.Segments {
		h.Write([]byte{byte(s.Op)})
		writeFloat(h, s.P1.X)
		writeFloat(h, s.P1.Y)
		writeFloat(h, s.P2.X)
		writeFloat(h, s.P2.Y)
		writeFloat(h, s.End.X)
		writeFloat(h, s.End.Y)
	}
}

func writePaint(h hash.Hash, p *doc.Paint) {
	h.Write([]byte{p.Color.R, p.Color.G, p.Color.B, p.Color.A})
	if p.Gradient != nil {
		h.Write([]byte{1})
		writeFloat(h, p.Gradient.From.X)
		writeFloat(h, p.Gradient.From.Y)
		writeFloat(h, p.Gradient.To.X)
		writeFloat(h, p.Gradient.To.Y)
		writeUint(h, uint64(len(p.Gradient.Stops)))
		for _, s := range p.Gradient.Stops {
			writeFloat(h, s.Offset)
			h.Write([]byte{s.Color.R, s.Color.G, s.Color.B, s.Color.A})
		}
	} else {
		h.Write([]byte{0})
	}
}

// Equal reports whether two items are structurally identical, ignoring the
// Debug field. It is the secondary check that guards content-address
// collisions: a hash match with Equal false must never merge the items.
func Equal(a, b *Item) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Kind != b.Kind || a.Class != b.Class || a.Size != b.Size {
		return false
	}
	if !pathEqual(a.Clip, b.Clip) || !pathEqual(a.Path, b.Path) {
		return false
	}
	if !paintEqual(a.Fill, b.Fill) || !strokeEqual(a.Stroke, b.Stroke) {
		return false
	}
	if !imageEqual(a.Image, b.Image) || !targetEqual(a.Link, b.Link) {
		return false
	}
	if !textEqual(a.Text, b.Text) {
		return false
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if a.Children[i].Placement != b.Children[i].Placement {
			return false
		}
		if !Equal(a.Children[i].Item, b.Children[i].Item) {
			return false
		}
	}
	return true
}

func pathEqual(a, b *doc.Path) bool {
	if a == nil || b == nil {
		return a.IsEmpty() == b.IsEmpty()
	}
	if len(a.Segments) != len(b.Segments) {
		return false
	}
	for i := range a.Segments {
		if a.Segments[i] != b.Segments[i] {
			return false
		}
	}
	return true
}

func paintEqual(a, b *doc.Paint) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	if a.Color != b.Color {
		return false
	}
	ag, bg := a.Gradient, b.Gradient
	if (ag == nil) != (bg == nil) {
		return false
	}
	if ag == nil {
		return true
	}
	if ag.From != bg.From || ag.To != bg.To || len(ag.Stops) != len(bg.Stops) {
		return false
	}
	for i := range ag.Stops {
		if ag.Stops[i] != bg.Stops[i] {
			return false
		}
	}
	return true
}

func strokeEqual(a, b *doc.Stroke) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	if !paintEqual(&a.Paint, &b.Paint) {
		return false
	}
	if a.Width != b.Width || a.Cap != b.Cap || a.Join != b.Join || a.DashPhase != b.DashPhase {
		return false
	}
	if len(a.DashArray) != len(b.DashArray) {
		return false
	}
	for i := range a.DashArray {
		if a.DashArray[i] != b.DashArray[i] {
			return false
		}
	}
	return true
}

func imageEqual(a, b *Image) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	return a.Format == b.Format && a.Alt == b.Alt && bytes.Equal(a.Data, b.Data)
}

func targetEqual(a, b *Target) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	return *a == *b
}

func textEqual(a, b *TextInfo) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	return *a == *b
}
