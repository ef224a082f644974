package layout

import (
	"github.com/matzehuels/mindcanvas/pkg/graph"
)

// ChildSlot returns where a new child of size (w, h) should go under
// parentID: one level below the parent, centered under it for a first
// child, otherwise to the right of the rightmost existing child. The result
// is grid-aligned. ok is false when the parent does not exist.
func ChildSlot(d *graph.Document, parentID string, w float64, opts Options) (pos graph.Position, ok bool) {
	parent, ok := d.Node(parentID)
	if !ok {
		return graph.Position{}, false
	}
	opts = opts.normalize()
	pw, ph := parent.Size()
	y := parent.Position.Y + max(opts.LevelSpacing, ph+opts.ParentGap)
	x := parent.Position.X + pw/2 - w/2

	first := true
	for _, id := range d.Children(parentID) {
		c, found := d.Node(id)
		if !found {
			continue
		}
		cw, _ := c.Size()
		right := c.Position.X + cw + opts.NodeSpacing
		if first || right > x {
			x = right
			y = c.Position.Y
			first = false
		}
	}
	return graph.Position{X: opts.Snap(x), Y: opts.Snap(y)}, true
}
