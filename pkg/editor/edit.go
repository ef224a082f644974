package editor

import (
	"context"
	"maps"
	"reflect"
	"slices"
	"strings"
	"time"

	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/graph"
	"github.com/matzehuels/mindcanvas/pkg/history"
	"github.com/matzehuels/mindcanvas/pkg/layout"
	"github.com/matzehuels/mindcanvas/pkg/observability"
)

// =============================================================================
// Nodes
// =============================================================================

// AddNode inserts n. An empty id is replaced with a fresh one and a nil
// payload with the empty payload of the node's type. It returns the id of
// the new node.
func (s *Store) AddNode(n graph.Node) (string, bool) {
	if n.ID == "" {
		n.ID = s.ids(1)[0]
	}
	if s.doc.HasNode(n.ID) {
		return "", s.reject("add_node", apperr.Wrap(apperr.ErrCodeInvalidInput, graph.ErrDuplicateNodeID, "node %s", n.ID))
	}
	if err := graph.ValidateNode(n); err != nil {
		return "", s.reject("add_node", apperr.Wrap(apperr.ErrCodeInvalidInput, err, "node %s", n.ID))
	}
	if n.Data == nil {
		n.Data = graph.EmptyPayload(n.Type)
	}
	n.Selected = false
	if !s.do(history.AddNodesFrom(s.doc, []graph.Node{n}, nil)) {
		return "", false
	}
	return n.ID, true
}

// AddChild creates a node of type t below parentID, connected to it, in one
// undoable step.
func (s *Store) AddChild(parentID string, t graph.NodeType) (string, bool) {
	if !t.Valid() {
		return "", s.reject("add_child", apperr.Wrap(apperr.ErrCodeInvalidInput, graph.ErrUnknownNodeType, "type %q", t))
	}
	w, _ := graph.DefaultSize(t)
	pos, ok := layout.ChildSlot(s.doc, parentID, w, s.layout)
	if !ok {
		return "", s.reject("add_child", apperr.Wrap(apperr.ErrCodeNotFound, graph.ErrUnknownNode, "parent %s", parentID))
	}
	n := graph.NewNode(s.ids(1)[0], t, pos)
	e := graph.Edge{
		ID:           graph.EdgeID(parentID, n.ID),
		Source:       parentID,
		Target:       n.ID,
		SourceHandle: graph.HandleBottomSource,
		TargetHandle: graph.HandleTopTarget,
		Type:         s.doc.Settings.EdgeType,
	}
	if !s.do(history.AddNodesFrom(s.doc, []graph.Node{n}, []graph.Edge{e})) {
		return "", false
	}
	return n.ID, true
}

// DropItem is something dragged onto the canvas: a palette entry of a node
// type, or an image file already uploaded to ImageURL.
type DropItem struct {
	Type     graph.NodeType
	ImageURL string
}

// Drop creates one node for item at the given world position.
func (s *Store) Drop(item DropItem, at graph.Position) (string, bool) {
	n := graph.NewNode("", item.Type, at)
	if item.ImageURL != "" {
		if err := apperr.ValidateURL(item.ImageURL); err != nil {
			return "", s.reject("drop", err)
		}
		n.Type = graph.TypeImage
		n.Data = graph.ImageData{ImageURL: item.ImageURL}
	}
	return s.AddNode(n)
}

// MoveNodes sets new positions for the given nodes as one undoable step.
// Unknown ids are ignored; it returns false if nothing would move.
func (s *Store) MoveNodes(positions map[string]graph.Position) bool {
	a := history.MoveNodesFrom(s.doc, positions)
	for id, p := range a.Positions {
		if a.Previous[id] == p {
			delete(a.Positions, id)
			delete(a.Previous, id)
		}
	}
	if len(a.Positions) == 0 {
		return false
	}
	return s.do(a)
}

// UpdateNode replaces the payload and background of a node. The payload must
// belong to the node's type; nil keeps the current one. An empty background
// means inherit from the document, so pass the current value to keep it.
// It returns false when the node is missing or nothing changes.
func (s *Store) UpdateNode(id string, data graph.Payload, background string) bool {
	n, ok := s.doc.Node(id)
	if !ok {
		return false
	}
	if data == nil {
		data = n.Data
	}
	if data.NodeType() != n.Type {
		return s.reject("update_node", apperr.Wrap(apperr.ErrCodeInvalidInput, graph.ErrPayloadMismatch, "node %s", id))
	}
	if background != "" {
		if err := apperr.ValidateColor(background); err != nil {
			return s.reject("update_node", err)
		}
	}
	if reflect.DeepEqual(data, n.Data) && background == n.Style.Background {
		return false
	}
	a, ok := history.UpdateNodeFrom(s.doc, id, history.NodeContent{Data: data, Background: background})
	if !ok {
		return false
	}
	return s.do(a)
}

// Resize sets the explicit size override of a node. Nil clears an axis back
// to the intrinsic size.
func (s *Store) Resize(id string, width, height *float64) bool {
	n, ok := s.doc.Node(id)
	if !ok {
		return false
	}
	if sameSize(n.Width, width) && sameSize(n.Height, height) {
		return false
	}
	a, ok := history.ResizeNodeFrom(s.doc, id, history.Size{Width: width, Height: height})
	if !ok {
		return false
	}
	return s.do(a)
}

func sameSize(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// DeleteNode removes a node together with everything reachable from it and
// every edge touching a removed node. The root cannot be deleted.
func (s *Store) DeleteNode(id string) bool {
	if id == graph.RootID {
		return s.reject("delete_node", apperr.Wrap(apperr.ErrCodeRootProtected, graph.ErrRootProtected, "delete %s", id))
	}
	if !s.doc.HasNode(id) {
		return false
	}
	return s.do(history.DeleteNodesFrom(s.doc, s.doc.CascadeIDs(id)))
}

// DeleteSelection cascades a delete from every selected node except the
// root, as one undoable step.
func (s *Store) DeleteSelection() bool {
	ids := s.cascadeSelection()
	if len(ids) == 0 {
		return false
	}
	return s.do(history.DeleteNodesFrom(s.doc, ids))
}

func (s *Store) cascadeSelection() []string {
	var ids []string
	seen := make(map[string]bool)
	for _, n := range s.doc.Selected() {
		if n.ID == graph.RootID {
			continue
		}
		for _, id := range s.doc.CascadeIDs(n.ID) {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// =============================================================================
// Edges
// =============================================================================

// Connect validates and adds the edge proposed by a connect gesture. Illegal
// connections (self-loops, missing endpoints, duplicates, cycles) are
// rejected without changing anything.
func (s *Store) Connect(c graph.Connection) (graph.Edge, bool) {
	e, err := s.validator.Validate(s.doc, c)
	if err != nil {
		return graph.Edge{}, s.reject("connect", err)
	}
	if !s.do(history.ConnectFrom(s.doc, e)) {
		return graph.Edge{}, false
	}
	return e, true
}

// ValidateConnection reports why c would be rejected by Connect, or nil.
func (s *Store) ValidateConnection(c graph.Connection) error {
	_, err := s.validator.Validate(s.doc, c)
	return err
}

// Disconnect removes the given edges as one undoable step. Unknown ids are
// ignored.
func (s *Store) Disconnect(edgeIDs ...string) bool {
	var ids []string
	for _, id := range edgeIDs {
		if _, ok := s.doc.Edge(id); ok && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return false
	}
	return s.do(history.DisconnectFrom(s.doc, ids...))
}

// =============================================================================
// Document
// =============================================================================

// UpdateTitle renames the document.
func (s *Store) UpdateTitle(title string) bool {
	title = strings.TrimSpace(title)
	if title == "" || title == s.doc.Title {
		return false
	}
	return s.do(history.UpdateTitleFrom(s.doc, title))
}

// SetEdgeType restyles every edge and sets the routing of new edges.
func (s *Store) SetEdgeType(t graph.EdgeType) bool {
	if !t.Valid() {
		return s.reject("change_edge_type", apperr.New(apperr.ErrCodeInvalidInput, "unknown edge type %q", t))
	}
	if t == s.doc.Settings.EdgeType && s.allEdgesRouted(t) {
		return false
	}
	return s.do(history.ChangeEdgeTypeFrom(s.doc, t))
}

func (s *Store) allEdgesRouted(t graph.EdgeType) bool {
	for _, e := range s.doc.Edges() {
		if e.Type != t {
			return false
		}
	}
	return true
}

// SetBackgroundColor sets the canvas background color.
func (s *Store) SetBackgroundColor(color string) bool {
	if err := apperr.ValidateColor(color); err != nil {
		return s.reject("change_background_color", err)
	}
	if color == s.doc.Settings.BackgroundColor {
		return false
	}
	return s.do(history.ChangeBackgroundColorFrom(s.doc, color))
}

// SetDotColor sets the color of the canvas grid dots.
func (s *Store) SetDotColor(color string) bool {
	if err := apperr.ValidateColor(color); err != nil {
		return s.reject("change_dot_color", err)
	}
	if color == s.doc.Settings.DotColor {
		return false
	}
	return s.do(history.ChangeDotColorFrom(s.doc, color))
}

// AutoLayout arranges everything below nodeID, which itself stays put, and
// records the result as one multi-node move. It returns the number of nodes
// that moved.
func (s *Store) AutoLayout(nodeID string) (int, bool) {
	start := time.Now()
	positions := layout.Subtree(s.doc, nodeID, s.layout)
	changed := make(map[string]graph.Position, len(positions))
	for _, id := range slices.Sorted(maps.Keys(positions)) {
		if n, ok := s.doc.Node(id); ok && n.Position != positions[id] {
			changed[id] = positions[id]
		}
	}
	observability.Editor().OnLayout(context.Background(), len(changed), time.Since(start))
	if len(changed) == 0 {
		return 0, false
	}
	if !s.do(history.MoveNodesFrom(s.doc, changed)) {
		return 0, false
	}
	s.logger.Debug("editor: auto-layout", "root", nodeID, "moved", len(changed))
	return len(changed), true
}

// =============================================================================
// Selection and search
// =============================================================================

// Select marks a node as selected. Unless additive, every other node is
// deselected first. Selection is not recorded in history nor broadcast.
func (s *Store) Select(id string, additive bool) bool {
	if !s.doc.HasNode(id) {
		return false
	}
	if !additive {
		s.doc.ClearSelection()
	}
	return s.doc.SetSelected(id, true)
}

// Deselect clears the selection flag of one node.
func (s *Store) Deselect(id string) bool { return s.doc.SetSelected(id, false) }

// ClearSelection deselects every node.
func (s *Store) ClearSelection() { s.doc.ClearSelection() }

// Selected returns the selected nodes in document order.
func (s *Store) Selected() []graph.Node { return s.doc.Selected() }

// Search returns the ids of nodes whose label contains query, ignoring case,
// in document order. An empty query matches nothing.
func (s *Store) Search(query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var hits []string
	for _, n := range s.doc.Nodes() {
		if strings.Contains(strings.ToLower(n.Label()), q) {
			hits = append(hits, n.ID)
		}
	}
	return hits
}
