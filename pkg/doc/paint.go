package doc

import "fmt"

// Color is an 8-bit RGBA color.
type Color struct {
	R uint8 `json:"r" bson:"r"`
	G uint8 `json:"g" bson:"g"`
	B uint8 `json:"b" bson:"b"`
	A uint8 `json:"a" bson:"a"`
}

// RGB returns an opaque color.
func RGB(r, g, b uint8) Color { return Color{R: r, G: g, B: b, A: 255} }

// Black is opaque black.
var Black = RGB(0, 0, 0)

// White is opaque white.
var White = RGB(255, 255, 255)

// Hex returns the CSS hex form, "#rrggbb".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Opacity returns the alpha channel as a fraction in [0,1].
func (c Color) Opacity() float64 { return float64(c.A) / 255 }

// IsOpaque reports whether the color is fully opaque.
func (c Color) IsOpaque() bool { return c.A == 255 }

// GradientStop is one color stop of a gradient.
type GradientStop struct {
	// Offset along the gradient axis in [0,1].
	Offset float64 `json:"offset" bson:"offset"`
	Color  Color   `json:"color" bson:"color"`
}

// Gradient is a linear gradient in the unit square of the painted item's
// bounding box. Keeping gradients in unit space makes structurally identical
// gradients independent of the painted geometry, so they deduplicate.
type Gradient struct {
	From  Point          `json:"from" bson:"from"`
	To    Point          `json:"to" bson:"to"`
	Stops []GradientStop `json:"stops" bson:"stops"`
}

// Paint is either a solid color or a gradient. A nil Gradient means solid.
type Paint struct {
	Color    Color     `json:"color" bson:"color"`
	Gradient *Gradient `json:"gradient,omitempty" bson:"gradient,omitempty"`
}

// Solid returns a solid paint.
func Solid(c Color) Paint { return Paint{Color: c} }

// Stroke describes how a path outline is drawn.
type Stroke struct {
	Paint Paint   `json:"paint" bson:"paint"`
	Width float64 `json:"width" bson:"width"`

	// Cap is "butt", "round" or "square". Empty means "butt".
	Cap string `json:"cap,omitempty" bson:"cap,omitempty"`

	// Join is "miter", "round" or "bevel". Empty means "miter".
	Join string `json:"join,omitempty" bson:"join,omitempty"`

	// Dash pattern, empty for a solid stroke.
	DashArray []float64 `json:"dash_array,omitempty" bson:"dash_array,omitempty"`
	DashPhase float64   `json:"dash_phase,omitempty" bson:"dash_phase,omitempty"`
}
