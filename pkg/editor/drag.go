package editor

import (
	"maps"
	"slices"

	"github.com/matzehuels/mindcanvas/pkg/graph"
	"github.com/matzehuels/mindcanvas/pkg/history"
)

// DragThreshold is the net movement, in canvas units, below which ending a
// drag commits nothing.
const DragThreshold = 1.0

type dragSession struct {
	start map[string]graph.Position
	delta graph.Position
	live  bool // intermediate positions were broadcast
}

// BeginDrag starts moving the given nodes, or the selection when ids is
// empty. Intermediate moves change the document but not the history.
// Beginning a drag while one is active cancels the old one.
func (s *Store) BeginDrag(ids ...string) bool {
	s.CancelDrag()
	if len(ids) == 0 {
		for _, n := range s.doc.Selected() {
			ids = append(ids, n.ID)
		}
	}
	start := make(map[string]graph.Position, len(ids))
	for _, id := range ids {
		if n, ok := s.doc.Node(id); ok {
			start[id] = n.Position
		}
	}
	if len(start) == 0 {
		return false
	}
	s.drag = &dragSession{start: start}
	return true
}

// Dragging reports whether a drag is active.
func (s *Store) Dragging() bool { return s.drag != nil }

// DragTo moves every dragged node to its start position plus delta.
func (s *Store) DragTo(delta graph.Position) bool {
	if s.drag == nil {
		return false
	}
	s.drag.delta = delta
	for id, p := range s.drag.start {
		_ = s.doc.SetPosition(id, p.Add(delta))
	}
	if s.liveDrag {
		s.publishNodes(sortedKeys(s.drag.start))
		s.drag.live = true
	}
	return true
}

// EndDrag finishes the drag. A net movement of at least DragThreshold is
// recorded as one move and broadcast; anything smaller snaps the nodes back
// and commits nothing.
func (s *Store) EndDrag() bool {
	d := s.drag
	if d == nil {
		return false
	}
	if d.delta.Distance(graph.Position{}) < DragThreshold {
		s.CancelDrag()
		return false
	}
	return s.commitDrag()
}

// settleDrag finishes an active drag before another edit is applied. The
// edit was built against the dragged positions, so any movement is recorded
// first, threshold or not, and undo walks back through both.
func (s *Store) settleDrag() {
	d := s.drag
	if d == nil {
		return
	}
	if d.delta == (graph.Position{}) {
		s.drag = nil
		return
	}
	s.commitDrag()
}

func (s *Store) commitDrag() bool {
	d := s.drag
	s.drag = nil

	a := history.MoveNodes{
		Positions: make(map[string]graph.Position, len(d.start)),
		Previous:  maps.Clone(d.start),
	}
	for id := range d.start {
		if n, ok := s.doc.Node(id); ok {
			a.Positions[id] = n.Position
		} else {
			// Deleted by a collaborator mid-drag.
			delete(a.Previous, id)
		}
	}
	if len(a.Positions) == 0 {
		return false
	}
	if !s.record(a) {
		return false
	}
	s.publishNodes(sortedKeys(a.Positions))
	return true
}

// CancelDrag aborts the drag and restores the start positions without
// touching history. Peers are only told when they saw live positions.
func (s *Store) CancelDrag() bool {
	d := s.drag
	if d == nil {
		return false
	}
	s.drag = nil
	for id, p := range d.start {
		_ = s.doc.SetPosition(id, p)
	}
	if d.live {
		s.publishNodes(sortedKeys(d.start))
	}
	return true
}

func sortedKeys[V any](m map[string]V) []string { return slices.Sorted(maps.Keys(m)) }
