package layout

import (
	"math"

	"github.com/matzehuels/mindcanvas/pkg/graph"
)

// Subtree lays out every node reachable from rootID below it and returns the
// new position of each, keyed by id. The root is not included and the
// document is not modified. The result is empty when rootID does not exist
// or has no children.
func Subtree(d *graph.Document, rootID string, opts Options) map[string]graph.Position {
	root, ok := d.Node(rootID)
	if !ok || len(d.Children(rootID)) == 0 {
		return map[string]graph.Position{}
	}

	l := &layouter{
		doc:    d,
		opts:   opts.normalize(),
		tree:   spanningTree(d, rootID, opts.MaxDepth),
		widths: make(map[string]float64),
		pos:    make(map[string]graph.Position),
	}
	l.measure(rootID)

	// Place with a provisional origin at x=0, then shift everything so the
	// root's center sits over its children.
	l.place(rootID, 0, root.Position.Y, true)

	minX, maxX := l.childrenSpan(rootID)
	rootW, _ := root.Size()
	offset := l.snap(root.Position.X + rootW/2 - (minX+maxX)/2)

	out := make(map[string]graph.Position, len(l.pos))
	for id, p := range l.pos {
		out[id] = graph.Position{X: p.X + offset, Y: p.Y}
	}
	return out
}

// spanningTree assigns every node reachable from root to exactly one parent,
// the first to reach it in depth-first order. Nodes deeper than maxDepth
// are not included.
func spanningTree(d *graph.Document, root string, maxDepth int) map[string][]string {
	tree := make(map[string][]string)
	visited := map[string]bool{root: true}

	var visit func(id string, depth int)
	visit = func(id string, depth int) {
		if maxDepth > 0 && depth >= maxDepth {
			return
		}
		var kids []string
		for _, c := range d.Children(id) {
			if visited[c] {
				continue
			}
			visited[c] = true
			kids = append(kids, c)
		}
		tree[id] = kids
		for _, c := range kids {
			visit(c, depth+1)
		}
	}
	visit(root, 0)
	return tree
}

type layouter struct {
	doc    *graph.Document
	opts   Options
	tree   map[string][]string
	widths map[string]float64
	pos    map[string]graph.Position
}

func (l *layouter) size(id string) (w, h float64) {
	n, _ := l.doc.Node(id)
	return n.Size()
}

func (l *layouter) hasKids(id string) bool { return len(l.tree[id]) > 0 }

// rows splits the children of id into display rows.
func (l *layouter) rows(id string) [][]string {
	kids := l.tree[id]
	if len(kids) < l.opts.PackThreshold {
		return [][]string{kids}
	}
	for _, c := range kids {
		if l.hasKids(c) {
			return [][]string{kids}
		}
	}
	var rows [][]string
	for i := 0; i < len(kids); i += l.opts.RowSize {
		rows = append(rows, kids[i:min(i+l.opts.RowSize, len(kids))])
	}
	return rows
}

func (l *layouter) gap(a, b string) float64 {
	if l.hasKids(a) || l.hasKids(b) {
		return l.opts.SubtreeSpacing
	}
	return l.opts.NodeSpacing
}

func (l *layouter) rowWidth(row []string) float64 {
	var w float64
	for i, c := range row {
		w += l.widths[c]
		if i > 0 {
			w += l.gap(row[i-1], c)
		}
	}
	return w
}

// measure computes subtree widths bottom-up.
func (l *layouter) measure(id string) float64 {
	for _, c := range l.tree[id] {
		l.measure(c)
	}
	w, _ := l.size(id)
	for _, row := range l.rows(id) {
		w = math.Max(w, l.rowWidth(row))
	}
	l.widths[id] = w
	return w
}

// place positions id centered at centerX with its top at topY, then its
// children below it. The root of the operation is never recorded.
func (l *layouter) place(id string, centerX, topY float64, isRoot bool) {
	w, h := l.size(id)
	if !isRoot {
		l.pos[id] = graph.Position{X: l.snap(centerX - w/2), Y: l.snap(topY)}
	}
	if !l.hasKids(id) {
		return
	}

	rowTop := topY + math.Max(l.opts.LevelSpacing, h+l.opts.ParentGap)
	for _, row := range l.rows(id) {
		x := centerX - l.rowWidth(row)/2
		var rowHeight float64
		for i, c := range row {
			cw := l.widths[c]
			l.place(c, x+cw/2, rowTop, false)
			x += cw
			if i+1 < len(row) {
				x += l.gap(c, row[i+1])
			}
			_, ch := l.size(c)
			rowHeight = math.Max(rowHeight, ch)
		}
		rowTop += rowHeight + l.opts.ParentGap
	}

	if !isRoot {
		minX, maxX := l.childrenSpan(id)
		p := l.pos[id]
		p.X = l.snap((minX+maxX)/2 - w/2)
		l.pos[id] = p
	}
}

// childrenSpan returns the horizontal extent of the placed direct children.
func (l *layouter) childrenSpan(id string) (minX, maxX float64) {
	minX, maxX = math.Inf(1), math.Inf(-1)
	for _, c := range l.tree[id] {
		p := l.pos[c]
		w, _ := l.size(c)
		minX = math.Min(minX, p.X)
		maxX = math.Max(maxX, p.X+w)
	}
	return minX, maxX
}

func (l *layouter) snap(v float64) float64 { return l.opts.Snap(v) }
