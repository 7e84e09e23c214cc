// Package doc defines the laid-out document model consumed by the export
// pipeline.
//
// A Document is the output of a layout engine: an ordered sequence of pages,
// each holding a tree of positioned primitives (text runs with resolved
// glyphs, filled and stroked paths, raster images, clipped groups, hyperlink
// regions). The pipeline treats a Document as immutable for the duration of
// one export pass and never requests re-layout.
//
// The model is deliberately free of any SVG specifics; the lowering stage
// (package lower) translates it into vector items.
package doc

// Document is a fully laid-out document.
type Document struct {
	// Title is used for the output document's metadata.
	Title string `json:"title,omitempty"`

	// Pages in document order.
	Pages []Page `json:"pages"`
}

// Page is one laid-out page.
type Page struct {
	// Size is the page size in points.
	Size Size `json:"size"`

	// Fill is the page background. A nil fill means white.
	Fill *Paint `json:"fill,omitempty"`

	// Frame holds the page content.
	Frame Frame `json:"frame"`
}

// Frame is an ordered collection of positioned items.
type Frame struct {
	// Size of the frame in points.
	Size Size `json:"size"`

	// Items in paint order. Position is relative to the frame origin.
	Items []Positioned `json:"items,omitempty"`
}

// Positioned pairs a frame item with its offset inside the frame.
// It carries a custom JSON codec (see MarshalJSON) because Item is an
// interface.
type Positioned struct {
	Pos  Point
	Item FrameItem
}

// FrameItem is one primitive inside a frame.
//
// Implementations: *Group, *TextRun, *Shape, *Image, *Link, *Tag.
type FrameItem interface {
	frameItem()
}

// Group nests a frame with an additional transform and optional clip.
type Group struct {
	Frame     Frame     `json:"frame"`
	Transform Transform `json:"transform,omitempty"`

	// Clip restricts rendering of the group's content when non-nil.
	Clip *Path `json:"clip,omitempty"`

	// Hard marks a group that establishes its own coordinate space
	// (a sized sub-layout such as a table cell or floating figure).
	// Hard groups are reuse boundaries: their content is addressed
	// relative to the group origin.
	Hard bool `json:"hard,omitempty"`

	// Label is an optional semantic label carried into the output.
	Label string `json:"label,omitempty"`
}

// TextRun is a shaped run of glyphs sharing font, size and fill.
type TextRun struct {
	// Font is the resolved font family name.
	Font string `json:"font,omitempty"`

	// Size is the font size in points.
	Size float64 `json:"size"`

	// Fill paints the glyphs.
	Fill Paint `json:"fill"`

	// Glyphs in visual order.
	Glyphs []Glyph `json:"glyphs"`

	// Text is the source text of the run, carried for accessibility.
	Text string `json:"text,omitempty"`

	// Fallback is set when the run was measured with a substitute font.
	// The consumer applies a one-time horizontal correction to match
	// TargetWidth.
	Fallback    bool    `json:"fallback,omitempty"`
	TargetWidth float64 `json:"target_width,omitempty"`
}

// Glyph is one positioned glyph of a text run.
type Glyph struct {
	// ID is the glyph id in the run's font.
	ID uint32 `json:"id"`

	// Offset relative to the run origin, in points.
	Offset Point `json:"offset"`

	// Advance is the horizontal advance in points.
	Advance float64 `json:"advance,omitempty"`

	// Outline is the glyph outline scaled to the run's font size, with
	// the glyph origin at (0,0). A nil outline marks a glyph whose font
	// could not be embedded; lowering degrades it to a placeholder.
	Outline *Path `json:"outline,omitempty"`
}

// Shape is a filled and/or stroked geometry.
type Shape struct {
	Geometry Path    `json:"geometry"`
	Fill     *Paint  `json:"fill,omitempty"`
	Stroke   *Stroke `json:"stroke,omitempty"`
}

// Image is an embedded raster image.
type Image struct {
	// Format is the encoded format: "png", "jpeg" or "gif".
	Format string `json:"format"`

	// Data is the encoded image payload. Empty data marks an image the
	// layout engine could not decode; lowering degrades it to a
	// placeholder.
	Data []byte `json:"data,omitempty"`

	// Size is the display size in points.
	Size Size `json:"size"`

	// Alt is an optional description.
	Alt string `json:"alt,omitempty"`
}

// Link is an interactive region. Exactly one of URL or the in-document
// destination (Page, Pos) is meaningful: a non-empty URL takes precedence.
type Link struct {
	// URL is an external target.
	URL string `json:"url,omitempty"`

	// Page and Pos address an in-document position (page index plus
	// page-local point) when URL is empty.
	Page int   `json:"page,omitempty"`
	Pos  Point `json:"pos,omitempty"`

	// Size is the clickable region.
	Size Size `json:"size"`
}

// Tag is a non-visual marker attached by the layout engine (for example a
// debug annotation). Tags carry no visible content and are dropped during
// lowering.
type Tag struct {
	Name string `json:"name,omitempty"`
}

func (*Group) frameItem()   {}
func (*TextRun) frameItem() {}
func (*Shape) frameItem()   {}
func (*Image) frameItem()   {}
func (*Link) frameItem()    {}
func (*Tag) frameItem()     {}

// IsExternal reports whether the link targets an external URL.
func (l *Link) IsExternal() bool { return l.URL != "" }
