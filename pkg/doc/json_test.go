package doc

import (
	"encoding/json"
	"testing"
)

func TestDocumentJSONRoundTrip(t *testing.T) {
	fill := Solid(RGB(10, 20, 30))
	d := &Document{
		Title: "demo",
		Pages: []Page{{
			Size: Size{W: 200, H: 100},
			Frame: Frame{Size: Size{W: 200, H: 100}, Items: []Positioned{
				{Pos: Point{X: 5, Y: 5}, Item: &Shape{Geometry: RectPath(Size{W: 10, H: 10}), Fill: &fill}},
				{Pos: Point{X: 0, Y: 30}, Item: &Group{Hard: true, Frame: Frame{
					Size: Size{W: 50, H: 20},
					Items: []Positioned{
						{Item: &Link{URL: "https://example.com", Size: Size{W: 50, H: 20}}},
					},
				}}},
				{Pos: Point{X: 0, Y: 60}, Item: &Image{Format: "png", Data: []byte{1, 2}, Size: Size{W: 8, H: 8}}},
				{Item: &Tag{Name: "marker"}},
			}},
		}},
	}

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}
	var got Document
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}

	items := got.Pages[0].Frame.Items
	if len(items) != 4 {
		t.Fatalf("round trip kept %d items, want 4", len(items))
	}
	shape, ok := items[0].Item.(*Shape)
	if !ok || shape.Fill == nil || shape.Fill.Color != fill.Color {
		t.Errorf("item 0 = %#v, want the original shape", items[0].Item)
	}
	grp, ok := items[1].Item.(*Group)
	if !ok || !grp.Hard {
		t.Fatalf("item 1 = %#v, want a hard group", items[1].Item)
	}
	if link, ok := grp.Frame.Items[0].Item.(*Link); !ok || link.URL != "https://example.com" {
		t.Errorf("nested link = %#v", grp.Frame.Items[0].Item)
	}
	if img, ok := items[2].Item.(*Image); !ok || img.Format != "png" || len(img.Data) != 2 {
		t.Errorf("item 2 = %#v, want the original image", items[2].Item)
	}
	if _, ok := items[3].Item.(*Tag); !ok {
		t.Errorf("item 3 = %#v, want a tag", items[3].Item)
	}
}

func TestUnmarshalRejectsUnknownItemType(t *testing.T) {
	data := []byte(`{"pos":{"x":0,"y":0},"type":"video"}`)
	var p Positioned
	if err := json.Unmarshal(data, &p); err == nil {
		t.Error("unknown item type accepted")
	}
}

func TestUnmarshalHandwrittenDocument(t *testing.T) {
	// The form a layout engine actually emits: no optional fields.
	data := []byte(`{
		"title": "minimal",
		"pages": [{
			"size": {"w": 100, "h": 50},
			"frame": {"size": {"w": 100, "h": 50}, "items": [
				{"pos": {"x": 1, "y": 2}, "type": "shape", "shape": {
					"geometry": {"segments": [
						{"op": 0, "end": {"x": 0, "y": 0}},
						{"op": 1, "end": {"x": 10, "y": 0}},
						{"op": 3}
					]},
					"fill": {"color": {"r": 0, "g": 0, "b": 0, "a": 255}}
				}}
			]}
		}]
	}`)
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	shape, ok := d.Pages[0].Frame.Items[0].Item.(*Shape)
	if !ok {
		t.Fatalf("item = %#v", d.Pages[0].Frame.Items[0].Item)
	}
	if len(shape.Geometry.Segments) != 3 || shape.Fill == nil {
		t.Errorf("shape = %+v", shape)
	}
}
