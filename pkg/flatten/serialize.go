package flatten

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mbolt/svgpress/pkg/doc"
	"github.com/mbolt/svgpress/pkg/item"
)

// Wire format for flattened modules. The format is a valid persistence
// boundary: a serialized module reloads with identical addresses (including
// collision-salted ones), definition order and reference counts, so
// re-assembly after a round trip is byte-identical to direct assembly.
//
// The types carry bson tags alongside json so the same shape stores
// unchanged in MongoDB snapshots (package store).

type moduleWire struct {
	Title string    `json:"title,omitempty" bson:"title,omitempty"`
	Defs  []defWire `json:"defs" bson:"defs"`
	Refs  []refWire `json:"refs" bson:"refs"`
}

type defWire struct {
	Addr     string      `json:"addr" bson:"addr"`
	Kind     uint8       `json:"kind" bson:"kind"`
	Class    string      `json:"class,omitempty" bson:"class,omitempty"`
	Clip     *doc.Path   `json:"clip,omitempty" bson:"clip,omitempty"`
	Path     *doc.Path   `json:"path,omitempty" bson:"path,omitempty"`
	Fill     *doc.Paint  `json:"fill,omitempty" bson:"fill,omitempty"`
	Stroke   *doc.Stroke `json:"stroke,omitempty" bson:"stroke,omitempty"`
	Image    *imageWire  `json:"image,omitempty" bson:"image,omitempty"`
	Link     *targetWire `json:"link,omitempty" bson:"link,omitempty"`
	Size     *doc.Size   `json:"size,omitempty" bson:"size,omitempty"`
	Text     *textWire   `json:"text,omitempty" bson:"text,omitempty"`
	Children []childWire `json:"children,omitempty" bson:"children,omitempty"`
	RefCount int         `json:"ref_count" bson:"ref_count"`
}

type childWire struct {
	Addr      string        `json:"addr" bson:"addr"`
	Placement doc.Transform `json:"placement" bson:"placement"`
}

type refWire struct {
	Addr      string        `json:"addr" bson:"addr"`
	Placement doc.Transform `json:"placement" bson:"placement"`
	Page      int           `json:"page" bson:"page"`
	Size      doc.Size      `json:"size" bson:"size"`
}

type imageWire struct {
	Format string `json:"format" bson:"format"`
	Data   []byte `json:"data" bson:"data"`
	Alt    string `json:"alt,omitempty" bson:"alt,omitempty"`
}

type targetWire struct {
	URL  string  `json:"url,omitempty" bson:"url,omitempty"`
	Page int     `json:"page,omitempty" bson:"page,omitempty"`
	X    float64 `json:"x,omitempty" bson:"x,omitempty"`
	Y    float64 `json:"y,omitempty" bson:"y,omitempty"`
}

type textWire struct {
	Text        string  `json:"text,omitempty" bson:"text,omitempty"`
	Fallback    bool    `json:"fallback,omitempty" bson:"fallback,omitempty"`
	TargetWidth float64 `json:"target_width,omitempty" bson:"target_width,omitempty"`
}

// WriteModule encodes m as indented JSON and writes it to w.
func WriteModule(m *Module, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toWire(m))
}

// ReadModule decodes a module previously written with WriteModule.
func ReadModule(r io.Reader) (*Module, error) {
	var wire moduleWire
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode module: %w", err)
	}
	return fromWire(&wire)
}

// MarshalModule encodes m as JSON.
func MarshalModule(m *Module) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteModule(m, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalModule decodes a module encoded with MarshalModule.
func UnmarshalModule(data []byte) (*Module, error) {
	return ReadModule(bytes.NewReader(data))
}

func toWire(m *Module) *moduleWire {
	defs := m.Defs()
	wire := &moduleWire{
		Title: m.Title,
		Defs:  make([]defWire, len(defs)),
		Refs:  make([]refWire, len(m.Refs)),
	}
	for i, d := range defs {
		dw := defWire{
			Addr:     d.Addr.String(),
			Kind:     uint8(d.Content.Kind),
			Class:    d.Content.Class,
			Clip:     d.Content.Clip,
			Path:     d.Content.Path,
			Fill:     d.Content.Fill,
			Stroke:   d.Content.Stroke,
			RefCount: d.RefCount,
		}
		if d.Content.Image != nil {
			dw.Image = &imageWire{
				Format: d.Content.Image.Format,
				Data:   d.Content.Image.Data,
				Alt:    d.Content.Image.Alt,
			}
		}
		if d.Content.Link != nil {
			dw.Link = &targetWire{
				URL:  d.Content.Link.URL,
				Page: d.Content.Link.Page,
				X:    d.Content.Link.X,
				Y:    d.Content.Link.Y,
			}
		}
		if d.Content.Size != (doc.Size{}) {
			size := d.Content.Size
			dw.Size = &size
		}
		if d.Content.Text != nil {
			dw.Text = &textWire{
				Text:        d.Content.Text.Text,
				Fallback:    d.Content.Text.Fallback,
				TargetWidth: d.Content.Text.TargetWidth,
			}
		}
		for _, c := range d.Children {
			dw.Children = append(dw.Children, childWire{
				Addr:      c.Addr.String(),
				Placement: c.Placement,
			})
		}
		wire.Defs[i] = dw
	}
	for i, r := range m.Refs {
		wire.Refs[i] = refWire{
			Addr:      r.Addr.String(),
			Placement: r.Placement,
			Page:      r.Page,
			Size:      r.Size,
		}
	}
	return wire
}

func fromWire(wire *moduleWire) (*Module, error) {
	m := NewModule(wire.Title)
	for i, dw := range wire.Defs {
		addr, ok := item.ParseAddr(dw.Addr)
		if !ok {
			return nil, fmt.Errorf("def %d: invalid address %q", i, dw.Addr)
		}
		content := &item.Item{
			Kind:   item.Kind(dw.Kind),
			Class:  dw.Class,
			Clip:   dw.Clip,
			Path:   dw.Path,
			Fill:   dw.Fill,
			Stroke: dw.Stroke,
		}
		if dw.Image != nil {
			content.Image = &item.Image{
				Format: dw.Image.Format,
				Data:   dw.Image.Data,
				Alt:    dw.Image.Alt,
			}
		}
		if dw.Link != nil {
			content.Link = &item.Target{
				URL:  dw.Link.URL,
				Page: dw.Link.Page,
				X:    dw.Link.X,
				Y:    dw.Link.Y,
			}
		}
		if dw.Size != nil {
			content.Size = *dw.Size
		}
		if dw.Text != nil {
			content.Text = &item.TextInfo{
				Text:        dw.Text.Text,
				Fallback:    dw.Text.Fallback,
				TargetWidth: dw.Text.TargetWidth,
			}
		}
		var children []ChildRef
		for j, cw := range dw.Children {
			caddr, ok := item.ParseAddr(cw.Addr)
			if !ok {
				return nil, fmt.Errorf("def %d child %d: invalid address %q", i, j, cw.Addr)
			}
			// Definitions serialize bottom-up, so a child must already
			// be present.
			if _, ok := m.Def(caddr); !ok {
				return nil, fmt.Errorf("def %d child %d: unresolved address %q", i, j, cw.Addr)
			}
			children = append(children, ChildRef{Addr: caddr, Placement: cw.Placement})
		}
		m.restore(&Def{
			Addr:     addr,
			Content:  content,
			Children: children,
			Seq:      i,
			RefCount: dw.RefCount,
		})
	}
	for _, rw := range wire.Refs {
		addr, ok := item.ParseAddr(rw.Addr)
		if !ok {
			return nil, fmt.Errorf("ref: invalid address %q", rw.Addr)
		}
		if _, ok := m.Def(addr); !ok {
			return nil, fmt.Errorf("ref: unresolved address %q", rw.Addr)
		}
		m.AddRef(Ref{Addr: addr, Placement: rw.Placement, Page: rw.Page, Size: rw.Size})
	}
	return m, nil
}

// restore inserts a deserialized definition verbatim, preserving its stored
// address (including collision salts), sequence and reference count.
func (m *Module) restore(d *Def) {
	m.mu.Lock()
	if _, ok := m.defs[d.Addr]; !ok {
		m.defs[d.Addr] = d
		m.order = append(m.order, d.Addr)
	}
	m.mu.Unlock()
}
