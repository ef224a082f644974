// Package clipboard copies a selection of nodes and pastes it back with fresh
// ids at a new location.
//
// A paste preserves the relative layout of the copied nodes: their centroid
// is moved to the cursor and every node keeps its offset from it. Edges are
// carried only when both endpoints were copied.
package clipboard

import (
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/matzehuels/mindcanvas/pkg/graph"
)

// Clipboard holds copied nodes and the edges between them.
type Clipboard struct {
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

// Empty reports whether there is nothing to paste.
func (c Clipboard) Empty() bool { return len(c.Nodes) == 0 }

// Copy captures the selected nodes and every edge whose endpoints are both in
// the selection. Edges crossing the selection boundary are dropped.
func Copy(selected []graph.Node, edges []graph.Edge) Clipboard {
	in := make(map[string]bool, len(selected))
	cb := Clipboard{Nodes: make([]graph.Node, 0, len(selected))}
	for _, n := range selected {
		in[n.ID] = true
		c := n.Clone()
		c.Selected = false
		cb.Nodes = append(cb.Nodes, c)
	}
	for _, e := range edges {
		if in[e.Source] && in[e.Target] {
			cb.Edges = append(cb.Edges, e)
		}
	}
	return cb
}

// Centroid returns the mean position of the copied nodes.
func (c Clipboard) Centroid() graph.Position {
	if len(c.Nodes) == 0 {
		return graph.Position{}
	}
	var sum graph.Position
	for _, n := range c.Nodes {
		sum = sum.Add(n.Position)
	}
	k := float64(len(c.Nodes))
	return graph.Position{X: sum.X / k, Y: sum.Y / k}
}

// Viewport is the canvas transform: a world point p is drawn at
// p*Zoom + (X, Y) on screen.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Identity is the viewport with no pan and no zoom.
var Identity = Viewport{Zoom: 1}

// ScreenToWorld converts a screen point to canvas coordinates. A zero zoom
// is treated as 1.
func (v Viewport) ScreenToWorld(p graph.Position) graph.Position {
	z := v.Zoom
	if z == 0 {
		z = 1
	}
	return graph.Position{X: (p.X - v.X) / z, Y: (p.Y - v.Y) / z}
}

// WorldToScreen is the inverse of ScreenToWorld.
func (v Viewport) WorldToScreen(p graph.Position) graph.Position {
	z := v.Zoom
	if z == 0 {
		z = 1
	}
	return graph.Position{X: p.X*z + v.X, Y: p.Y*z + v.Y}
}

// IDFunc returns n fresh node ids for one paste batch. The ids must be
// distinct from each other and from any id returned earlier.
type IDFunc func(n int) []string

// Batch is the result of a paste: new nodes and edges plus the mapping from
// copied ids to the new ones.
type Batch struct {
	Nodes []graph.Node
	Edges []graph.Edge
	Remap map[string]string
}

// Paste places the clipboard contents so that their centroid lands on the
// cursor, given in screen coordinates. New nodes are selected. Paste returns
// false, and an empty batch, when the clipboard is empty.
func Paste(cb Clipboard, cursor graph.Position, vp Viewport, ids IDFunc) (Batch, bool) {
	if cb.Empty() {
		return Batch{}, false
	}
	offset := vp.ScreenToWorld(cursor).Sub(cb.Centroid())
	fresh := ids(len(cb.Nodes))

	b := Batch{
		Nodes: make([]graph.Node, 0, len(cb.Nodes)),
		Remap: make(map[string]string, len(cb.Nodes)),
	}
	for i, n := range cb.Nodes {
		c := n.Clone()
		c.ID = fresh[i]
		c.Position = n.Position.Add(offset)
		c.Selected = true
		b.Remap[n.ID] = c.ID
		b.Nodes = append(b.Nodes, c)
	}
	for _, e := range cb.Edges {
		src, ok1 := b.Remap[e.Source]
		dst, ok2 := b.Remap[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		e.ID = graph.EdgeID(src, dst)
		e.Source, e.Target = src, dst
		b.Edges = append(b.Edges, e)
	}
	return b, true
}

// Translate returns a copy of b with every node moved by delta. It is used to
// follow the cursor while a paste preview is active.
func (b Batch) Translate(delta graph.Position) Batch {
	out := Batch{Nodes: make([]graph.Node, len(b.Nodes)), Edges: slices.Clone(b.Edges), Remap: b.Remap}
	for i, n := range b.Nodes {
		c := n.Clone()
		c.Position = n.Position.Add(delta)
		out.Nodes[i] = c
	}
	return out
}

// TimeIDs returns an IDFunc that stamps each batch with the current time in
// milliseconds and suffixes the index within the batch. Stamps are strictly
// increasing, so two batches in the same millisecond never collide.
// A nil clock uses time.Now.
func TimeIDs(clock func() time.Time) IDFunc {
	if clock == nil {
		clock = time.Now
	}
	var (
		mu   sync.Mutex
		last int64
	)
	return func(n int) []string {
		mu.Lock()
		stamp := max(clock().UnixMilli(), last+1)
		last = stamp
		mu.Unlock()

		prefix := strconv.FormatInt(stamp, 10) + "-"
		ids := make([]string, n)
		for i := range ids {
			ids[i] = prefix + strconv.Itoa(i)
		}
		return ids
	}
}
