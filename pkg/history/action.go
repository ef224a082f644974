package history

import (
	"maps"
	"slices"

	"github.com/matzehuels/mindcanvas/pkg/graph"
)

// Kind identifies an action variant. The values match the wire names used by
// the web client.
type Kind string

// Action kinds.
const (
	KindAddNode               Kind = "add_node"
	KindMoveNode              Kind = "move_node"
	KindConnectNodes          Kind = "connect_nodes"
	KindDisconnectNodes       Kind = "disconnect_nodes"
	KindDeleteNode            Kind = "delete_node"
	KindUpdateNode            Kind = "update_node"
	KindUpdateTitle           Kind = "update_title"
	KindResizeNode            Kind = "resize_node"
	KindChangeEdgeType        Kind = "change_edge_type"
	KindChangeBackgroundColor Kind = "change_background_color"
	KindChangeDotColor        Kind = "change_dot_color"
)

// Action is a reversible document mutation.
//
// The interface is sealed: only the variants in this package implement it,
// so the dispatch in [Log.Undo] and [Log.Redo] is exhaustive.
type Action interface {
	// Kind returns the variant tag.
	Kind() Kind

	// validate checks the action's data and previous state.
	validate() error
	// apply re-applies the mutation (redo).
	apply(d *graph.Document)
	// revert restores the previous state (undo).
	revert(d *graph.Document)
}

// GraphState is a full copy of the node and edge arrays, used by structural
// actions whose inverse replaces both arrays wholesale.
type GraphState struct {
	Nodes []graph.Node
	Edges []graph.Edge
}

// CaptureGraph copies the node and edge arrays of d.
func CaptureGraph(d *graph.Document) *GraphState {
	return &GraphState{Nodes: d.Nodes(), Edges: d.Edges()}
}

func (s *GraphState) restore(d *graph.Document) {
	nodes := make([]graph.Node, len(s.Nodes))
	for i, n := range s.Nodes {
		nodes[i] = n.Clone()
	}
	d.RestoreGraph(nodes, slices.Clone(s.Edges))
}

// =============================================================================
// Structural actions
// =============================================================================

// AddNodes records the insertion of nodes and of the edges between them.
type AddNodes struct {
	Nodes    []graph.Node
	Edges    []graph.Edge
	Previous *GraphState
}

// AddNodesFrom builds an AddNodes action against the state of d before the
// insertion.
func AddNodesFrom(d *graph.Document, nodes []graph.Node, edges []graph.Edge) AddNodes {
	return AddNodes{Nodes: cloneNodes(nodes), Edges: slices.Clone(edges), Previous: CaptureGraph(d)}
}

func (AddNodes) Kind() Kind { return KindAddNode }

func (a AddNodes) validate() error {
	if a.Previous == nil {
		return errNoPrevious(a.Kind())
	}
	if len(a.Nodes) == 0 && len(a.Edges) == 0 {
		return errMalformed(a.Kind(), "nothing to add")
	}
	for _, n := range a.Nodes {
		if err := graph.ValidateNode(n); err != nil {
			return errMalformed(a.Kind(), "node %q: %v", n.ID, err)
		}
	}
	return validateEdges(a.Kind(), a.Edges)
}

func (a AddNodes) apply(d *graph.Document) {
	for _, n := range a.Nodes {
		_ = d.UpsertNode(n)
	}
	addEdges(d, a.Edges)
}

func (a AddNodes) revert(d *graph.Document) { a.Previous.restore(d) }

// Connect records the creation of one edge.
type Connect struct {
	Edge     graph.Edge
	Previous *GraphState
}

// ConnectFrom builds a Connect action against the state of d before the edge
// is added.
func ConnectFrom(d *graph.Document, e graph.Edge) Connect {
	return Connect{Edge: e, Previous: CaptureGraph(d)}
}

func (Connect) Kind() Kind { return KindConnectNodes }

func (a Connect) validate() error {
	if a.Previous == nil {
		return errNoPrevious(a.Kind())
	}
	return validateEdges(a.Kind(), []graph.Edge{a.Edge})
}

func (a Connect) apply(d *graph.Document) { addEdges(d, []graph.Edge{a.Edge}) }

func (a Connect) revert(d *graph.Document) { a.Previous.restore(d) }

// Disconnect records the removal of edges.
type Disconnect struct {
	EdgeIDs  []string
	Previous *GraphState
}

// DisconnectFrom builds a Disconnect action against the state of d before the
// edges are removed.
func DisconnectFrom(d *graph.Document, edgeIDs ...string) Disconnect {
	return Disconnect{EdgeIDs: slices.Clone(edgeIDs), Previous: CaptureGraph(d)}
}

func (Disconnect) Kind() Kind { return KindDisconnectNodes }

func (a Disconnect) validate() error {
	if a.Previous == nil {
		return errNoPrevious(a.Kind())
	}
	if len(a.EdgeIDs) == 0 || slices.Contains(a.EdgeIDs, "") {
		return errMalformed(a.Kind(), "missing edge id")
	}
	return nil
}

func (a Disconnect) apply(d *graph.Document) {
	for _, id := range a.EdgeIDs {
		_, _ = d.RemoveEdge(id)
	}
}

func (a Disconnect) revert(d *graph.Document) { a.Previous.restore(d) }

// DeleteNodes records a cascading deletion. IDs holds every removed node;
// touching edges are implied.
type DeleteNodes struct {
	IDs      []string
	Previous *GraphState
}

// DeleteNodesFrom builds a DeleteNodes action against the state of d before
// the deletion.
func DeleteNodesFrom(d *graph.Document, ids []string) DeleteNodes {
	return DeleteNodes{IDs: slices.Clone(ids), Previous: CaptureGraph(d)}
}

func (DeleteNodes) Kind() Kind { return KindDeleteNode }

func (a DeleteNodes) validate() error {
	if a.Previous == nil {
		return errNoPrevious(a.Kind())
	}
	if len(a.IDs) == 0 {
		return errMalformed(a.Kind(), "no nodes")
	}
	if slices.Contains(a.IDs, graph.RootID) {
		return errMalformed(a.Kind(), "root node cannot be deleted")
	}
	return nil
}

func (a DeleteNodes) apply(d *graph.Document) {
	for _, id := range a.IDs {
		_, _ = d.RemoveNode(id)
	}
}

func (a DeleteNodes) revert(d *graph.Document) { a.Previous.restore(d) }

// =============================================================================
// Per-node actions
// =============================================================================

// MoveNodes records new positions for one or more nodes.
// Previous holds the pre-move position of exactly the affected ids.
type MoveNodes struct {
	Positions map[string]graph.Position
	Previous  map[string]graph.Position
}

// MoveNodesFrom builds a MoveNodes action, reading previous positions from d.
// Ids missing from d are dropped.
func MoveNodesFrom(d *graph.Document, positions map[string]graph.Position) MoveNodes {
	a := MoveNodes{
		Positions: make(map[string]graph.Position, len(positions)),
		Previous:  make(map[string]graph.Position, len(positions)),
	}
	for id, p := range positions {
		n, ok := d.Node(id)
		if !ok {
			continue
		}
		a.Positions[id] = p
		a.Previous[id] = n.Position
	}
	return a
}

func (MoveNodes) Kind() Kind { return KindMoveNode }

func (a MoveNodes) validate() error {
	if a.Previous == nil {
		return errNoPrevious(a.Kind())
	}
	if len(a.Positions) == 0 {
		return errMalformed(a.Kind(), "empty position map")
	}
	for id := range a.Positions {
		if _, ok := a.Previous[id]; !ok {
			return errMalformed(a.Kind(), "no previous position for %q", id)
		}
	}
	return nil
}

func (a MoveNodes) apply(d *graph.Document)  { setPositions(d, a.Positions) }
func (a MoveNodes) revert(d *graph.Document) { setPositions(d, a.Previous) }

func setPositions(d *graph.Document, positions map[string]graph.Position) {
	for _, id := range slices.Sorted(maps.Keys(positions)) {
		_ = d.SetPosition(id, positions[id])
	}
}

// NodeContent is the editable content of a node: payload and background.
type NodeContent struct {
	Data       graph.Payload
	Background string
}

// UpdateNode records an edit of a node's payload and background.
type UpdateNode struct {
	ID       string
	Content  NodeContent
	Previous *NodeContent
}

// UpdateNodeFrom builds an UpdateNode action, reading the previous content of
// id from d. It returns false if the node does not exist.
func UpdateNodeFrom(d *graph.Document, id string, c NodeContent) (UpdateNode, bool) {
	n, ok := d.Node(id)
	if !ok {
		return UpdateNode{}, false
	}
	prev := NodeContent{Data: n.Data, Background: n.Style.Background}
	c.Data = graph.ClonePayload(c.Data)
	return UpdateNode{ID: id, Content: c, Previous: &prev}, true
}

func (UpdateNode) Kind() Kind { return KindUpdateNode }

func (a UpdateNode) validate() error {
	if a.Previous == nil || a.Previous.Data == nil {
		return errNoPrevious(a.Kind())
	}
	if a.ID == "" || a.Content.Data == nil {
		return errMalformed(a.Kind(), "missing node id or payload")
	}
	if a.Content.Data.NodeType() != a.Previous.Data.NodeType() {
		return errMalformed(a.Kind(), "payload type changed from %s to %s",
			a.Previous.Data.NodeType(), a.Content.Data.NodeType())
	}
	return nil
}

func (a UpdateNode) apply(d *graph.Document) {
	_ = d.SetData(a.ID, a.Content.Data, a.Content.Background)
}

func (a UpdateNode) revert(d *graph.Document) {
	_ = d.SetData(a.ID, a.Previous.Data, a.Previous.Background)
}

// Size is an explicit node size override. Nil fields use the intrinsic size.
type Size struct {
	Width  *float64
	Height *float64
}

// ResizeNode records a change of a node's explicit size.
type ResizeNode struct {
	ID       string
	Size     Size
	Previous *Size
}

// ResizeNodeFrom builds a ResizeNode action, reading the previous size of id
// from d. It returns false if the node does not exist.
func ResizeNodeFrom(d *graph.Document, id string, s Size) (ResizeNode, bool) {
	n, ok := d.Node(id)
	if !ok {
		return ResizeNode{}, false
	}
	return ResizeNode{ID: id, Size: s, Previous: &Size{Width: n.Width, Height: n.Height}}, true
}

func (ResizeNode) Kind() Kind { return KindResizeNode }

func (a ResizeNode) validate() error {
	if a.Previous == nil {
		return errNoPrevious(a.Kind())
	}
	if a.ID == "" {
		return errMalformed(a.Kind(), "missing node id")
	}
	for _, v := range []*float64{a.Size.Width, a.Size.Height} {
		if v != nil && *v <= 0 {
			return errMalformed(a.Kind(), "non-positive size %v", *v)
		}
	}
	return nil
}

func (a ResizeNode) apply(d *graph.Document) { _ = d.SetSize(a.ID, a.Size.Width, a.Size.Height) }

func (a ResizeNode) revert(d *graph.Document) {
	_ = d.SetSize(a.ID, a.Previous.Width, a.Previous.Height)
}

// =============================================================================
// Document-level actions
// =============================================================================

// UpdateTitle records a title change.
type UpdateTitle struct {
	Title    string
	Previous *string
}

// UpdateTitleFrom builds an UpdateTitle action against the current title.
func UpdateTitleFrom(d *graph.Document, title string) UpdateTitle {
	prev := d.Title
	return UpdateTitle{Title: title, Previous: &prev}
}

func (UpdateTitle) Kind() Kind { return KindUpdateTitle }

func (a UpdateTitle) validate() error {
	if a.Previous == nil {
		return errNoPrevious(a.Kind())
	}
	return nil
}

func (a UpdateTitle) apply(d *graph.Document)  { d.Title = a.Title }
func (a UpdateTitle) revert(d *graph.Document) { d.Title = *a.Previous }

// EdgeTypes captures the document default routing and the routing of every
// edge, since changing the edge type restyles all edges at once.
type EdgeTypes struct {
	Default graph.EdgeType
	Edges   map[string]graph.EdgeType
}

// ChangeEdgeType records a document-wide edge routing change.
type ChangeEdgeType struct {
	EdgeType graph.EdgeType
	Previous *EdgeTypes
}

// ChangeEdgeTypeFrom builds a ChangeEdgeType action against the current
// routing of d.
func ChangeEdgeTypeFrom(d *graph.Document, t graph.EdgeType) ChangeEdgeType {
	prev := &EdgeTypes{Default: d.Settings.EdgeType, Edges: make(map[string]graph.EdgeType)}
	for _, e := range d.Edges() {
		prev.Edges[e.ID] = e.Type
	}
	return ChangeEdgeType{EdgeType: t, Previous: prev}
}

func (ChangeEdgeType) Kind() Kind { return KindChangeEdgeType }

func (a ChangeEdgeType) validate() error {
	if a.Previous == nil {
		return errNoPrevious(a.Kind())
	}
	if !a.EdgeType.Valid() {
		return errMalformed(a.Kind(), "unknown edge type %q", a.EdgeType)
	}
	return nil
}

func (a ChangeEdgeType) apply(d *graph.Document) { d.SetEdgeType(a.EdgeType) }

func (a ChangeEdgeType) revert(d *graph.Document) {
	d.Settings.EdgeType = a.Previous.Default
	for id, t := range a.Previous.Edges {
		_ = d.SetEdgeRouting(id, t)
	}
}

// ChangeBackgroundColor records a canvas background color change.
type ChangeBackgroundColor struct {
	Color    string
	Previous *string
}

// ChangeBackgroundColorFrom builds a ChangeBackgroundColor action against the
// current color.
func ChangeBackgroundColorFrom(d *graph.Document, color string) ChangeBackgroundColor {
	prev := d.Settings.BackgroundColor
	return ChangeBackgroundColor{Color: color, Previous: &prev}
}

func (ChangeBackgroundColor) Kind() Kind { return KindChangeBackgroundColor }

func (a ChangeBackgroundColor) validate() error {
	if a.Previous == nil {
		return errNoPrevious(a.Kind())
	}
	return nil
}

func (a ChangeBackgroundColor) apply(d *graph.Document)  { d.Settings.BackgroundColor = a.Color }
func (a ChangeBackgroundColor) revert(d *graph.Document) { d.Settings.BackgroundColor = *a.Previous }

// ChangeDotColor records a canvas grid dot color change.
type ChangeDotColor struct {
	Color    string
	Previous *string
}

// ChangeDotColorFrom builds a ChangeDotColor action against the current color.
func ChangeDotColorFrom(d *graph.Document, color string) ChangeDotColor {
	prev := d.Settings.DotColor
	return ChangeDotColor{Color: color, Previous: &prev}
}

func (ChangeDotColor) Kind() Kind { return KindChangeDotColor }

func (a ChangeDotColor) validate() error {
	if a.Previous == nil {
		return errNoPrevious(a.Kind())
	}
	return nil
}

func (a ChangeDotColor) apply(d *graph.Document)  { d.Settings.DotColor = a.Color }
func (a ChangeDotColor) revert(d *graph.Document) { d.Settings.DotColor = *a.Previous }

// =============================================================================
// Helpers
// =============================================================================

func validateEdges(k Kind, edges []graph.Edge) error {
	for _, e := range edges {
		if e.Source == "" || e.Target == "" {
			return errMalformed(k, "edge %q has no endpoints", e.ID)
		}
		if e.Source == e.Target {
			return errMalformed(k, "edge %q is a self loop", e.ID)
		}
	}
	return nil
}

// addEdges inserts edges whose endpoints exist and whose id is free.
func addEdges(d *graph.Document, edges []graph.Edge) {
	for _, e := range edges {
		_ = d.AddEdge(e)
	}
}

func cloneNodes(nodes []graph.Node) []graph.Node {
	out := make([]graph.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}
