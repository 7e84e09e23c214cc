package item

import "github.com/mbolt/svgpress/pkg/doc"

// Page is one lowered page: its dimensions plus the page-root group item.
type Page struct {
	// Size is the page size in points, exposed on the page group so a
	// consumer can compute on-page offsets without parsing geometry.
	Size doc.Size

	// Root is the page's top-level group. The page class and index are
	// attached by assembly per occurrence, not stored in the content.
	Root *Item
}

// Tree is the lowered form of a whole document: the vector-item trees of
// all pages in document order. It is produced once per export pass and may
// be discarded after flattening.
type Tree struct {
	Title string
	Pages []Page
}

// ItemCount returns the total number of items in the tree. Used for
// logging and buffer pre-sizing heuristics.
func (t *Tree) ItemCount() int {
	n := 0
	for _, p := range t.Pages {
		n += count(p.Root)
	}
	return n
}

func count(it *Item) int {
	if it == nil {
		return 0
	}
	n := 1
	for _, c := range it.Children {
		n += count(c.Item)
	}
	return n
}
