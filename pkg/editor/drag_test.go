package editor

import (
	"testing"

	"github.com/matzehuels/mindcanvas/pkg/collab"
	"github.com/matzehuels/mindcanvas/pkg/graph"
)

func TestDragBelowThresholdCommitsNothing(t *testing.T) {
	s, rec := newStore(t)
	a := mustChild(t, s, graph.RootID)
	rec.reset()
	base := historyLen(s)

	if !s.BeginDrag(a) {
		t.Fatal("BeginDrag failed")
	}
	s.DragTo(graph.Position{X: 0.5, Y: 0.5})
	if s.EndDrag() {
		t.Error("sub-threshold drag committed")
	}
	n, _ := s.Node(a)
	if n.Position != (graph.Position{X: 0, Y: 120}) {
		t.Errorf("position = %v, want start", n.Position)
	}
	if historyLen(s) != base || rec.calls != 0 || s.Dragging() {
		t.Error("sub-threshold drag left traces")
	}
}

func TestDragCommitsOneMove(t *testing.T) {
	s, rec := newStore(t)
	a := mustChild(t, s, graph.RootID)
	b := mustChild(t, s, graph.RootID)
	s.Select(a, false)
	s.Select(b, true)
	rec.reset()
	base := historyLen(s)

	if !s.BeginDrag() {
		t.Fatal("BeginDrag on selection failed")
	}
	for _, d := range []graph.Position{{X: 10}, {X: 30, Y: 5}, {X: 60, Y: 20}} {
		s.DragTo(d)
	}
	if historyLen(s) != base || rec.calls != 0 {
		t.Fatal("intermediate samples reached history or peers")
	}
	if !s.EndDrag() {
		t.Fatal("EndDrag failed")
	}
	if historyLen(s) != base+1 {
		t.Errorf("history grew by %d, want 1", historyLen(s)-base)
	}
	na, _ := s.Node(a)
	nb, _ := s.Node(b)
	if na.Position != (graph.Position{X: 60, Y: 140}) || nb.Position != (graph.Position{X: 240, Y: 140}) {
		t.Errorf("positions = %v, %v", na.Position, nb.Position)
	}
	if rec.calls != 1 || len(rec.events) != 2 {
		t.Errorf("broadcasts = %d with %d events, want 1 with 2", rec.calls, len(rec.events))
	}
	for _, ev := range rec.events {
		if ev.Action != collab.ActionUpdate {
			t.Errorf("event %+v is not an update", ev)
		}
	}

	s.Undo()
	na, _ = s.Node(a)
	if na.Position != (graph.Position{X: 0, Y: 120}) {
		t.Errorf("undo left a at %v", na.Position)
	}
}

func TestCancelDrag(t *testing.T) {
	s, rec := newStore(t)
	a := mustChild(t, s, graph.RootID)
	rec.reset()
	base := historyLen(s)

	s.BeginDrag(a)
	s.DragTo(graph.Position{X: 200, Y: 200})
	if !s.Cancel() {
		t.Fatal("Cancel did not abort the drag")
	}
	n, _ := s.Node(a)
	if n.Position != (graph.Position{X: 0, Y: 120}) {
		t.Errorf("position = %v, want start", n.Position)
	}
	if historyLen(s) != base || rec.calls != 0 {
		t.Error("cancelled drag left traces")
	}
	if s.EndDrag() || s.DragTo(graph.Position{X: 1}) {
		t.Error("drag calls succeeded without an active drag")
	}
}

func TestLiveDrag(t *testing.T) {
	s, rec := newStore(t, func(o *Options) { o.LiveDrag = true })
	a := mustChild(t, s, graph.RootID)
	rec.reset()
	base := historyLen(s)

	s.BeginDrag(a)
	s.DragTo(graph.Position{X: 20})
	s.DragTo(graph.Position{X: 40})
	if rec.calls != 2 {
		t.Errorf("live samples broadcast %d times, want 2", rec.calls)
	}
	if historyLen(s) != base {
		t.Error("live samples reached history")
	}

	s.CancelDrag()
	if rec.calls != 3 {
		t.Fatalf("cancel after live drag broadcast %d times, want 3", rec.calls)
	}
	var restored graph.Node
	if err := collabNode(rec.events[len(rec.events)-1], &restored); err != nil {
		t.Fatal(err)
	}
	if restored.Position != (graph.Position{X: 0, Y: 120}) {
		t.Errorf("peers told %v, want the start position", restored.Position)
	}
}

func TestDragSurvivesRemoteDelete(t *testing.T) {
	s, _ := newStore(t)
	a := mustChild(t, s, graph.RootID)
	b := mustChild(t, s, graph.RootID)
	base := historyLen(s)

	s.BeginDrag(a, b)
	s.DragTo(graph.Position{X: 100})
	s.ApplyRemote(collab.DeleteEvent(collab.EntityNode, b, "bob"))
	if !s.EndDrag() {
		t.Fatal("EndDrag failed")
	}
	if historyLen(s) != base+1 {
		t.Error("move not recorded")
	}
	s.Undo()
	n, _ := s.Node(a)
	if n.Position != (graph.Position{X: 0, Y: 120}) {
		t.Errorf("undo left a at %v", n.Position)
	}
}

func collabNode(ev collab.Event, n *graph.Node) error {
	return n.UnmarshalJSON(ev.Data)
}

func TestEditDuringDragUndoesToStart(t *testing.T) {
	tests := []struct {
		name  string
		delta graph.Position
		edit  func(s *Store, a, b string) bool
	}{
		{"Connect", graph.Position{X: 100}, func(s *Store, a, b string) bool {
			_, ok := s.Connect(graph.Connection{Source: b, Target: a})
			return ok
		}},
		{"Rename", graph.Position{X: 40, Y: 40}, func(s *Store, a, _ string) bool {
			return s.UpdateNode(a, graph.TextData{Label: "moved"}, "")
		}},
		{"AutoLayout", graph.Position{X: 300, Y: 80}, func(s *Store, _, _ string) bool {
			_, ok := s.AutoLayout(graph.RootID)
			return ok
		}},
		{"SubThreshold", graph.Position{X: 0.5}, func(s *Store, a, b string) bool {
			_, ok := s.Connect(graph.Connection{Source: b, Target: a})
			return ok
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newStore(t)
			a := mustChild(t, s, graph.RootID)
			b := mustChild(t, s, graph.RootID)
			start := s.Snapshot()
			base := historyLen(s)

			s.BeginDrag(a)
			s.DragTo(tt.delta)
			if !tt.edit(s, a, b) {
				t.Fatal("edit rejected")
			}
			if s.Dragging() {
				t.Error("drag still active after an edit")
			}
			if s.EndDrag() {
				t.Error("EndDrag committed a settled drag")
			}

			for {
				if _, cur := s.History(); cur < base {
					break
				}
				if !s.Undo() {
					t.Fatal("undo stopped above the start state")
				}
			}
			if !s.Snapshot().Equal(start) {
				n, _ := s.Node(a)
				t.Errorf("undo did not restore the start state; a at %v", n.Position)
			}
		})
	}
}
