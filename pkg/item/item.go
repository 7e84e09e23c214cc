// Package item defines the vector-item intermediate representation produced
// by lowering and consumed by flattening and code generation, together with
// the content-addressing scheme that identifies structurally identical items.
//
// A vector item mirrors one SVG element (group, path, glyph, image, link).
// Attributes are semantic values rather than serialized text: geometry,
// paint, transform matrices. Items form a tree; a group owns an ordered
// sequence of placed children.
//
// Content addresses are computed bottom-up over this tree (package function
// [Address]); they depend only on an item's structural content and its
// children's addresses, never on absolute position or identity, so two
// occurrences of the same icon at different places on a page share one
// address.
package item

import "github.com/mbolt/svgpress/pkg/doc"

// Kind identifies the SVG element family an item lowers to.
type Kind uint8

const (
	// KindGroup is a container with placed children and an optional clip.
	KindGroup Kind = iota + 1

	// KindPath is a filled and/or stroked outline.
	KindPath

	// KindGlyph is a single glyph outline, the main unit of reuse.
	KindGlyph

	// KindImage is an embedded raster image.
	KindImage

	// KindLink is an interactive region wrapping placed children.
	KindLink

	// KindPlaceholder stands in for content that could not be lowered
	// (missing font, undecodable image). It renders as a crossed box.
	KindPlaceholder
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindGroup:
		return "group"
	case KindPath:
		return "path"
	case KindGlyph:
		return "glyph"
	case KindImage:
		return "image"
	case KindLink:
		return "link"
	case KindPlaceholder:
		return "placeholder"
	}
	return "unknown"
}

// Semantic classes carried into the output for the consumer contract.
const (
	// ClassPage marks a page's top-level group.
	ClassPage = "page"

	// ClassText marks a text-run group.
	ClassText = "text"

	// ClassTextFallback marks a text-run group measured with a
	// substitute font; the consumer applies a corrective scale.
	ClassTextFallback = "text-fallback"

	// ClassLink marks an interactive region.
	ClassLink = "doc-link"

	// ClassPlaceholder marks degraded content.
	ClassPlaceholder = "placeholder"
)

// Item is one node of the vector-item tree. Fields are populated per kind;
// unused fields stay zero. The struct is treated as immutable once built.
type Item struct {
	Kind Kind

	// Class is the semantic class emitted on the element. It is part of
	// the item's content: the consumer contract depends on it.
	Class string

	// Children of a group or link, in paint order.
	Children []Child

	// Clip restricts a group's content when non-nil.
	Clip *doc.Path

	// Path geometry of a path or glyph item.
	Path *doc.Path

	// Fill paints a path or glyph.
	Fill *doc.Paint

	// Stroke outlines a path.
	Stroke *doc.Stroke

	// Image payload of an image item.
	Image *Image

	// Link target of a link item. Included in the address: two links
	// with different targets are not interchangeable even when their
	// geometry matches.
	Link *Target

	// Size of a link region, image, placeholder or page group.
	Size doc.Size

	// Text metadata of a text group.
	Text *TextInfo

	// Debug is an internal annotation that does not affect rendering.
	// It is excluded from content addressing so visually identical
	// items deduplicate regardless of it.
	Debug string
}

// Child is a placed child item. The placement transform is relative to the
// parent's origin and is part of the parent's content.
type Child struct {
	Placement doc.Transform
	Item      *Item
}

// Image is the payload of an image item.
type Image struct {
	Format string
	Data   []byte
	Alt    string
}

// Target is a link destination: an external URL, or a page-local position
// when URL is empty.
type Target struct {
	URL  string
	Page int
	X, Y float64
}

// TextInfo carries text-group metadata exposed to the output consumer.
type TextInfo struct {
	// Text is the source text, emitted for accessibility.
	Text string

	// Fallback marks a run measured with a substitute font.
	// TargetWidth is the originally measured width the consumer
	// corrects to.
	Fallback    bool
	TargetWidth float64
}

// Group returns a plain group item.
func Group(children ...Child) *Item {
	return &Item{Kind: KindGroup, Children: children}
}

// Placed places it at a translation offset.
func Placed(x, y float64, it *Item) Child {
	return Child{Placement: doc.Translate(x, y), Item: it}
}

// PlacedAt places it with a full transform.
func PlacedAt(t doc.Transform, it *Item) Child {
	return Child{Placement: t, Item: it}
}

// IsContainer reports whether the item owns children.
func (it *Item) IsContainer() bool {
	return it.Kind == KindGroup || it.Kind == KindLink
}
