package graph

import (
	"errors"
	"slices"
)

var (
	// ErrInvalidNodeID is returned by [Document.AddNode] when the node ID is
	// empty. All nodes must have non-empty identifiers.
	ErrInvalidNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Document.AddNode] when a node with
	// the same ID already exists. Node IDs are immutable and unique.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownNode is returned when an operation targets a node that does
	// not exist (or no longer exists).
	ErrUnknownNode = errors.New("unknown node")

	// ErrUnknownNodeType is returned when a node type has no payload variant.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrPayloadMismatch is returned when a payload does not belong to the
	// node's type.
	ErrPayloadMismatch = errors.New("payload does not match node type")

	// ErrRootProtected is returned by [Document.RemoveNode] for the root.
	ErrRootProtected = errors.New("root node cannot be removed")

	// ErrDuplicateEdgeID is returned by [Document.AddEdge] when an edge with
	// the same ID already exists.
	ErrDuplicateEdgeID = errors.New("duplicate edge ID")

	// ErrUnknownEdge is returned when an operation targets a missing edge.
	ErrUnknownEdge = errors.New("unknown edge")

	// ErrUnknownSourceNode is returned by [Document.AddEdge] when the source
	// node does not exist.
	ErrUnknownSourceNode = errors.New("unknown source node")

	// ErrUnknownTargetNode is returned by [Document.AddEdge] when the target
	// node does not exist.
	ErrUnknownTargetNode = errors.New("unknown target node")

	// ErrSelfLoop is returned by [Document.AddEdge] when source == target.
	ErrSelfLoop = errors.New("edge source and target must differ")
)

// Document is the mutable mind map: title, settings, nodes and edges.
//
// The zero value is not usable - use [New] to create a document.
// Document is not safe for concurrent use; it is owned by a single editor
// loop.
type Document struct {
	Title    string
	Settings Settings

	nodes     map[string]*Node
	nodeOrder []string
	edges     map[string]*Edge
	edgeOrder []string
	outgoing  map[string][]string // nodeID -> target IDs, edge order
	incoming  map[string][]string // nodeID -> source IDs, edge order
}

// New creates an empty document with default settings.
func New(title string) *Document {
	return &Document{
		Title:    title,
		Settings: DefaultSettings(),
		nodes:    make(map[string]*Node),
		edges:    make(map[string]*Edge),
		outgoing: make(map[string][]string),
		incoming: make(map[string][]string),
	}
}

// NewWithRoot creates a document containing only the root text node.
func NewWithRoot(title string) *Document {
	d := New(title)
	root := NewNode(RootID, TypeText, Position{})
	root.Data = TextData{Label: title}
	_ = d.AddNode(root)
	return d
}

// AddNode adds a copy of n to the document.
// Returns ErrInvalidNodeID for an empty id, ErrDuplicateNodeID if the id is
// taken, ErrUnknownNodeType for an unsupported type and ErrPayloadMismatch if
// the payload belongs to another type. A nil payload is replaced with the
// zero payload of the type.
func (d *Document) AddNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	if _, exists := d.nodes[n.ID]; exists {
		return ErrDuplicateNodeID
	}
	if err := checkPayload(&n); err != nil {
		return err
	}
	c := n.Clone()
	d.nodes[c.ID] = &c
	d.nodeOrder = append(d.nodeOrder, c.ID)
	return nil
}

// ValidateNode reports why n could not be added to a document:
// ErrInvalidNodeID, ErrUnknownNodeType or ErrPayloadMismatch. A nil payload
// is valid.
func ValidateNode(n Node) error {
	if n.ID == "" {
		return ErrInvalidNodeID
	}
	return checkPayload(&n)
}

func checkPayload(n *Node) error {
	if !n.Type.Valid() {
		return ErrUnknownNodeType
	}
	if n.Data == nil {
		n.Data = EmptyPayload(n.Type)
		return nil
	}
	if n.Data.NodeType() != n.Type {
		return ErrPayloadMismatch
	}
	return nil
}

// ReplaceNode overwrites every field of an existing node with n.
// The node keeps its position in the document order.
func (d *Document) ReplaceNode(n Node) error {
	if _, ok := d.nodes[n.ID]; !ok {
		return ErrUnknownNode
	}
	if err := checkPayload(&n); err != nil {
		return err
	}
	c := n.Clone()
	d.nodes[n.ID] = &c
	return nil
}

// UpsertNode replaces the node if it exists, otherwise adds it.
func (d *Document) UpsertNode(n Node) error {
	if d.HasNode(n.ID) {
		return d.ReplaceNode(n)
	}
	return d.AddNode(n)
}

// Node returns a copy of the node with the given id and true, or the zero
// node and false if it does not exist.
func (d *Document) Node(id string) (Node, bool) {
	n, ok := d.nodes[id]
	if !ok {
		return Node{}, false
	}
	return n.Clone(), true
}

// HasNode reports whether a node with the given id exists.
func (d *Document) HasNode(id string) bool {
	_, ok := d.nodes[id]
	return ok
}

// Nodes returns copies of all nodes in insertion order.
func (d *Document) Nodes() []Node {
	out := make([]Node, 0, len(d.nodeOrder))
	for _, id := range d.nodeOrder {
		out = append(out, d.nodes[id].Clone())
	}
	return out
}

// NodeIDs returns all node ids in insertion order.
func (d *Document) NodeIDs() []string { return slices.Clone(d.nodeOrder) }

// NodeCount returns the number of nodes.
func (d *Document) NodeCount() int { return len(d.nodes) }

// SetPosition moves a node. Returns ErrUnknownNode if it does not exist.
func (d *Document) SetPosition(id string, p Position) error {
	n, ok := d.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	n.Position = p
	return nil
}

// SetSize sets the explicit size override of a node; nil clears it.
func (d *Document) SetSize(id string, w, h *float64) error {
	n, ok := d.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	n.Width, n.Height = clonePtr(w), clonePtr(h)
	return nil
}

// SetData replaces the payload and background of a node.
func (d *Document) SetData(id string, data Payload, background string) error {
	n, ok := d.nodes[id]
	if !ok {
		return ErrUnknownNode
	}
	if data == nil || data.NodeType() != n.Type {
		return ErrPayloadMismatch
	}
	n.Data = ClonePayload(data)
	n.Style.Background = background
	return nil
}

// SetSelected sets the transient selection flag of a node.
func (d *Document) SetSelected(id string, selected bool) bool {
	n, ok := d.nodes[id]
	if !ok {
		return false
	}
	n.Selected = selected
	return true
}

// ClearSelection deselects every node.
func (d *Document) ClearSelection() {
	for _, n := range d.nodes {
		n.Selected = false
	}
}

// Selected returns copies of the selected nodes in document order.
func (d *Document) Selected() []Node {
	var out []Node
	for _, id := range d.nodeOrder {
		if n := d.nodes[id]; n.Selected {
			out = append(out, n.Clone())
		}
	}
	return out
}

// RemoveNode removes a node and every edge touching it, returning the
// removed edges. The root node cannot be removed.
func (d *Document) RemoveNode(id string) ([]Edge, error) {
	if id == RootID {
		return nil, ErrRootProtected
	}
	if _, ok := d.nodes[id]; !ok {
		return nil, ErrUnknownNode
	}
	var removed []Edge
	for _, eid := range slices.Clone(d.edgeOrder) {
		if e := d.edges[eid]; e.Touches(id) {
			removed = append(removed, *e)
			d.removeEdge(eid)
		}
	}
	delete(d.nodes, id)
	d.nodeOrder = slices.DeleteFunc(d.nodeOrder, func(s string) bool { return s == id })
	delete(d.outgoing, id)
	delete(d.incoming, id)
	return removed, nil
}

// AddEdge adds a directed edge between two existing nodes.
// Returns ErrSelfLoop, ErrUnknownSourceNode, ErrUnknownTargetNode or
// ErrDuplicateEdgeID. AddEdge does not check for cycles - use [Validator].
func (d *Document) AddEdge(e Edge) error {
	if e.Source == e.Target {
		return ErrSelfLoop
	}
	if _, ok := d.nodes[e.Source]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := d.nodes[e.Target]; !ok {
		return ErrUnknownTargetNode
	}
	if e.ID == "" {
		e.ID = EdgeID(e.Source, e.Target)
	}
	if _, exists := d.edges[e.ID]; exists {
		return ErrDuplicateEdgeID
	}
	if e.Type == "" {
		e.Type = d.Settings.EdgeType
	}
	d.edges[e.ID] = &e
	d.edgeOrder = append(d.edgeOrder, e.ID)
	d.outgoing[e.Source] = append(d.outgoing[e.Source], e.Target)
	d.incoming[e.Target] = append(d.incoming[e.Target], e.Source)
	return nil
}

// RemoveEdge removes the edge with the given id and returns it.
func (d *Document) RemoveEdge(id string) (Edge, error) {
	e, ok := d.edges[id]
	if !ok {
		return Edge{}, ErrUnknownEdge
	}
	removed := *e
	d.removeEdge(id)
	return removed, nil
}

func (d *Document) removeEdge(id string) {
	e := d.edges[id]
	delete(d.edges, id)
	d.edgeOrder = slices.DeleteFunc(d.edgeOrder, func(s string) bool { return s == id })
	d.outgoing[e.Source] = removeOnce(d.outgoing[e.Source], e.Target)
	d.incoming[e.Target] = removeOnce(d.incoming[e.Target], e.Source)
}

func removeOnce(s []string, v string) []string {
	if i := slices.Index(s, v); i >= 0 {
		return slices.Delete(s, i, i+1)
	}
	return s
}

// Edge returns the edge with the given id and true, or false if missing.
func (d *Document) Edge(id string) (Edge, bool) {
	e, ok := d.edges[id]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

// HasEdge reports whether any edge source→target exists.
func (d *Document) HasEdge(source, target string) bool {
	return slices.Contains(d.outgoing[source], target)
}

// SetEdgeType changes the routing of every edge and of the document default.
func (d *Document) SetEdgeType(t EdgeType) {
	d.Settings.EdgeType = t
	for _, e := range d.edges {
		e.Type = t
	}
}

// ReplaceEdge overwrites the edge with the same id, keeping its position in
// the edge order. The endpoints may change.
func (d *Document) ReplaceEdge(e Edge) error {
	old, ok := d.edges[e.ID]
	if !ok {
		return ErrUnknownEdge
	}
	if e.Source == e.Target {
		return ErrSelfLoop
	}
	if _, ok := d.nodes[e.Source]; !ok {
		return ErrUnknownSourceNode
	}
	if _, ok := d.nodes[e.Target]; !ok {
		return ErrUnknownTargetNode
	}
	if e.Type == "" {
		e.Type = d.Settings.EdgeType
	}
	if old.Source != e.Source || old.Target != e.Target {
		d.outgoing[old.Source] = removeOnce(d.outgoing[old.Source], old.Target)
		d.incoming[old.Target] = removeOnce(d.incoming[old.Target], old.Source)
		d.outgoing[e.Source] = append(d.outgoing[e.Source], e.Target)
		d.incoming[e.Target] = append(d.incoming[e.Target], e.Source)
	}
	*old = e
	return nil
}

// SetEdgeRouting changes the routing of a single edge.
func (d *Document) SetEdgeRouting(id string, t EdgeType) error {
	e, ok := d.edges[id]
	if !ok {
		return ErrUnknownEdge
	}
	e.Type = t
	return nil
}

// Edges returns copies of all edges in insertion order.
func (d *Document) Edges() []Edge {
	out := make([]Edge, 0, len(d.edgeOrder))
	for _, id := range d.edgeOrder {
		out = append(out, *d.edges[id])
	}
	return out
}

// EdgeCount returns the number of edges.
func (d *Document) EdgeCount() int { return len(d.edges) }

// EdgesTouching returns the edges with id as source or target.
func (d *Document) EdgesTouching(id string) []Edge {
	var out []Edge
	for _, eid := range d.edgeOrder {
		if e := d.edges[eid]; e.Touches(id) {
			out = append(out, *e)
		}
	}
	return out
}

// Children returns the distinct targets of edges whose source is id, in edge
// order. Returns nil if the node has no children or does not exist.
func (d *Document) Children(id string) []string { return distinct(d.outgoing[id]) }

// Parents returns the distinct sources of edges whose target is id.
func (d *Document) Parents(id string) []string { return distinct(d.incoming[id]) }

func distinct(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Descendants returns every node reachable from id via outgoing edges, in
// depth-first discovery order, excluding id itself.
func (d *Document) Descendants(id string) []string {
	return d.walk(id, d.Children)
}

// Ancestors returns every node from which id is reachable, in depth-first
// discovery order, excluding id itself.
func (d *Document) Ancestors(id string) []string {
	return d.walk(id, d.Parents)
}

func (d *Document) walk(start string, next func(string) []string) []string {
	visited := map[string]bool{start: true}
	var out []string
	var visit func(id string, visited map[string]bool)
	visit = func(id string, visited map[string]bool) {
		for _, n := range next(id) {
			if visited[n] {
				continue
			}
			visited[n] = true
			out = append(out, n)
			visit(n, visited)
		}
	}
	visit(start, visited)
	return out
}

// CascadeIDs returns the ids removed by a cascading delete of id: the node
// itself followed by its descendants. The walk never enters the root, so a
// bidirectional pair with the root does not pull in the whole document.
// Returns nil if id does not exist or is the root.
func (d *Document) CascadeIDs(id string) []string {
	if id == RootID || !d.HasNode(id) {
		return nil
	}
	children := func(n string) []string {
		return slices.DeleteFunc(d.Children(n), func(c string) bool { return c == RootID })
	}
	return append([]string{id}, d.walk(id, children)...)
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := New(d.Title)
	c.Restore(d.Snapshot())
	return c
}

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
