package graph

import (
	"reflect"
	"slices"
)

// Snapshot is an immutable copy of a document's full state. It is the
// serialization format of a document and the "previous state" recorded by
// history actions that restore whole arrays.
type Snapshot struct {
	Title    string   `json:"title"`
	Settings Settings `json:"settings"`
	Nodes    []Node   `json:"nodes"`
	Edges    []Edge   `json:"edges"`
}

// Snapshot captures a deep copy of the document.
func (d *Document) Snapshot() Snapshot {
	return Snapshot{
		Title:    d.Title,
		Settings: d.Settings,
		Nodes:    d.Nodes(),
		Edges:    d.Edges(),
	}
}

// Restore replaces the whole document state with s.
// Nodes or edges that fail validation are skipped, so a restored document is
// always internally consistent.
func (d *Document) Restore(s Snapshot) {
	d.Title = s.Title
	d.Settings = s.Settings
	d.RestoreGraph(s.Nodes, s.Edges)
}

// RestoreGraph replaces the node and edge arrays, keeping title and settings.
func (d *Document) RestoreGraph(nodes []Node, edges []Edge) {
	d.nodes = make(map[string]*Node, len(nodes))
	d.nodeOrder = make([]string, 0, len(nodes))
	d.edges = make(map[string]*Edge, len(edges))
	d.edgeOrder = make([]string, 0, len(edges))
	d.outgoing = make(map[string][]string)
	d.incoming = make(map[string][]string)
	for _, n := range nodes {
		_ = d.AddNode(n)
	}
	for _, e := range edges {
		_ = d.AddEdge(e)
	}
}

// Clone returns a deep copy of the snapshot.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Nodes = make([]Node, len(s.Nodes))
	for i, n := range s.Nodes {
		c.Nodes[i] = n.Clone()
	}
	c.Edges = slices.Clone(s.Edges)
	return c
}

// Node returns the node with the given id from the snapshot.
func (s Snapshot) Node(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Edge returns the edge with the given id from the snapshot.
func (s Snapshot) Edge(id string) (Edge, bool) {
	for _, e := range s.Edges {
		if e.ID == id {
			return e, true
		}
	}
	return Edge{}, false
}

// Equal reports whether two snapshots describe the same document, ignoring
// the transient selection flag.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.Title != o.Title || s.Settings != o.Settings {
		return false
	}
	if len(s.Nodes) != len(o.Nodes) || len(s.Edges) != len(o.Edges) {
		return false
	}
	for i := range s.Nodes {
		a, b := s.Nodes[i].Clone(), o.Nodes[i].Clone()
		a.Selected, b.Selected = false, false
		if !reflect.DeepEqual(a, b) {
			return false
		}
	}
	return slices.Equal(s.Edges, o.Edges)
}
