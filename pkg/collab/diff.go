package collab

import (
	"reflect"

	"github.com/matzehuels/mindcanvas/pkg/graph"
)

// Diff derives the events that turn before into after, attributed to userID.
// docID names the document for document-level events.
//
// Events are ordered so that a receiver applying them in sequence never sees
// an edge before its endpoints: node creates and updates, then edge creates,
// updates and deletes, then node deletes, then the document update.
func Diff(docID string, before, after graph.Snapshot, userID string) []Event {
	var (
		nodeUps, edgeUps, edgeDels, nodeDels []Event
	)

	prevNodes := make(map[string]graph.Node, len(before.Nodes))
	for _, n := range before.Nodes {
		prevNodes[n.ID] = n
	}
	seen := make(map[string]bool, len(after.Nodes))
	for _, n := range after.Nodes {
		seen[n.ID] = true
		old, existed := prevNodes[n.ID]
		switch {
		case !existed:
			if ev, err := NodeEvent(ActionCreate, n, userID); err == nil {
				nodeUps = append(nodeUps, ev)
			}
		case !sameNode(old, n):
			if ev, err := NodeEvent(ActionUpdate, n, userID); err == nil {
				nodeUps = append(nodeUps, ev)
			}
		}
	}
	for _, n := range before.Nodes {
		if !seen[n.ID] {
			nodeDels = append(nodeDels, DeleteEvent(EntityNode, n.ID, userID))
		}
	}

	prevEdges := make(map[string]graph.Edge, len(before.Edges))
	for _, e := range before.Edges {
		prevEdges[e.ID] = e
	}
	seenEdges := make(map[string]bool, len(after.Edges))
	for _, e := range after.Edges {
		seenEdges[e.ID] = true
		old, existed := prevEdges[e.ID]
		switch {
		case !existed:
			if ev, err := EdgeEvent(ActionCreate, e, userID); err == nil {
				edgeUps = append(edgeUps, ev)
			}
		case old != e:
			if ev, err := EdgeEvent(ActionUpdate, e, userID); err == nil {
				edgeUps = append(edgeUps, ev)
			}
		}
	}
	for _, e := range before.Edges {
		if !seenEdges[e.ID] {
			edgeDels = append(edgeDels, DeleteEvent(EntityEdge, e.ID, userID))
		}
	}

	out := make([]Event, 0, len(nodeUps)+len(edgeUps)+len(edgeDels)+len(nodeDels)+1)
	out = append(out, nodeUps...)
	out = append(out, edgeUps...)
	out = append(out, edgeDels...)
	out = append(out, nodeDels...)
	if before.Title != after.Title || before.Settings != after.Settings {
		if ev, err := DocumentEvent(docID, after.Title, after.Settings, userID); err == nil {
			out = append(out, ev)
		}
	}
	return out
}

// sameNode compares two nodes ignoring the selection flag.
func sameNode(a, b graph.Node) bool {
	a.Selected, b.Selected = false, false
	return reflect.DeepEqual(a, b)
}
