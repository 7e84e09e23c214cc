package doc

import (
	"encoding/json"
	"fmt"
)

// JSON codec for the frame-item union. A positioned item serializes as its
// offset, a "type" discriminator and the item payload under a field named
// after the type:
//
//	{"pos": {"x": 10, "y": 20}, "type": "shape", "shape": {...}}
//
// This is the on-disk document format the CLI reads.

type positionedWire struct {
	Pos  Point    `json:"pos"`
	Type string   `json:"type"`
	Grp  *Group   `json:"group,omitempty"`
	Text *TextRun `json:"text,omitempty"`
	Shp  *Shape   `json:"shape,omitempty"`
	Img  *Image   `json:"image,omitempty"`
	Lnk  *Link    `json:"link,omitempty"`
	Tag  *Tag     `json:"tag,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (p Positioned) MarshalJSON() ([]byte, error) {
	w := positionedWire{Pos: p.Pos}
	switch v := p.Item.(type) {
	case *Group:
		w.Type, w.Grp = "group", v
	case *TextRun:
		w.Type, w.Text = "text", v
	case *Shape:
		w.Type, w.Shp = "shape", v
	case *Image:
		w.Type, w.Img = "image", v
	case *Link:
		w.Type, w.Lnk = "link", v
	case *Tag:
		w.Type, w.Tag = "tag", v
	case nil:
		return nil, fmt.Errorf("positioned item without content")
	default:
		return nil, fmt.Errorf("unknown frame item %T", p.Item)
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *Positioned) UnmarshalJSON(data []byte) error {
	var w positionedWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Pos = w.Pos
	switch w.Type {
	case "group":
		if w.Grp == nil {
			w.Grp = &Group{}
		}
		p.Item = w.Grp
	case "text":
		if w.Text == nil {
			w.Text = &TextRun{}
		}
		p.Item = w.Text
	case "shape":
		if w.Shp == nil {
			w.Shp = &Shape{}
		}
		p.Item = w.Shp
	case "image":
		if w.Img == nil {
			w.Img = &Image{}
		}
		p.Item = w.Img
	case "link":
		if w.Lnk == nil {
			w.Lnk = &Link{}
		}
		p.Item = w.Lnk
	case "tag":
		if w.Tag == nil {
			w.Tag = &Tag{}
		}
		p.Item = w.Tag
	default:
		return fmt.Errorf("unknown frame item type %q", w.Type)
	}
	return nil
}
