package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mindcanvas/pkg/clipboard"
	"github.com/matzehuels/mindcanvas/pkg/collab"
	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/graph"
	"github.com/matzehuels/mindcanvas/pkg/storage"
)

// recorder collects broadcast events.
type recorder struct {
	calls  int
	events []collab.Event
}

func (r *recorder) Broadcast(evs ...collab.Event) {
	r.calls++
	r.events = append(r.events, evs...)
}

func (r *recorder) reset() { r.calls, r.events = 0, nil }

// memPersister is an in-memory storage.Persister.
type memPersister struct {
	records map[string]storage.Record
	fail    error
}

func (m *memPersister) Save(_ context.Context, r storage.Record) error {
	if m.fail != nil {
		return m.fail
	}
	if m.records == nil {
		m.records = make(map[string]storage.Record)
	}
	m.records[r.DocumentID] = r
	return nil
}

func (m *memPersister) Load(_ context.Context, id string) (storage.Record, error) {
	r, ok := m.records[id]
	if !ok {
		return storage.Record{}, apperr.Wrap(apperr.ErrCodeNotFound, storage.ErrNotFound, "document %s", id)
	}
	return r, nil
}

func seqIDs() clipboard.IDFunc {
	next := 0
	return func(n int) []string {
		out := make([]string, n)
		for i := range out {
			next++
			out[i] = fmt.Sprintf("n%d", next)
		}
		return out
	}
}

func newStore(t *testing.T, opts ...func(*Options)) (*Store, *recorder) {
	t.Helper()
	rec := &recorder{}
	o := Options{
		DocumentID:  "doc",
		UserID:      "alice",
		Logger:      log.New(io.Discard),
		Broadcaster: rec,
		IDs:         seqIDs(),
	}
	for _, fn := range opts {
		fn(&o)
	}
	return New(graph.NewWithRoot("Plan"), o), rec
}

func mustChild(t *testing.T, s *Store, parent string) string {
	t.Helper()
	id, ok := s.AddChild(parent, graph.TypeText)
	if !ok {
		t.Fatalf("AddChild(%s) rejected", parent)
	}
	return id
}

func historyLen(s *Store) int {
	kinds, _ := s.History()
	return len(kinds)
}

func TestAddChildBroadcastsAfterCommit(t *testing.T) {
	s, rec := newStore(t)

	id := mustChild(t, s, graph.RootID)
	if id != "n1" {
		t.Fatalf("id = %q, want n1", id)
	}
	n, _ := s.Node(id)
	if n.Position != (graph.Position{X: 0, Y: 120}) {
		t.Errorf("position = %v, want (0,120)", n.Position)
	}
	if _, ok := s.Snapshot().Edge(graph.EdgeID(graph.RootID, id)); !ok {
		t.Error("child is not connected to its parent")
	}
	if historyLen(s) != 1 {
		t.Errorf("history len = %d, want 1", historyLen(s))
	}

	if len(rec.events) != 2 {
		t.Fatalf("events = %d, want 2", len(rec.events))
	}
	if ev := rec.events[0]; ev.Type != collab.EntityNode || ev.Action != collab.ActionCreate || ev.ID != id {
		t.Errorf("first event = %+v, want node create", ev)
	}
	if ev := rec.events[1]; ev.Type != collab.EntityEdge || ev.Action != collab.ActionCreate {
		t.Errorf("second event = %+v, want edge create", ev)
	}
	for _, ev := range rec.events {
		if ev.UserID != "alice" {
			t.Errorf("event user = %q", ev.UserID)
		}
	}

	rec.reset()
	if !s.Undo() {
		t.Fatal("Undo failed")
	}
	if s.Snapshot().Equal(graph.NewWithRoot("Plan").Snapshot()) == false {
		t.Error("undo did not restore the initial document")
	}
	if len(rec.events) != 2 || rec.events[0].Type != collab.EntityEdge || rec.events[1].Action != collab.ActionDelete {
		t.Errorf("undo events = %+v", rec.events)
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	s, _ := newStore(t)
	initial := s.Snapshot()

	a := mustChild(t, s, graph.RootID)
	b := mustChild(t, s, graph.RootID)
	steps := []struct {
		name string
		run  func() bool
	}{
		{"connect", func() bool { _, ok := s.Connect(graph.Connection{Source: a, Target: b}); return ok }},
		{"move", func() bool { return s.MoveNodes(map[string]graph.Position{a: {X: 400, Y: 400}, b: {X: -20, Y: 60}}) }},
		{"update", func() bool { return s.UpdateNode(a, graph.TextData{Label: "idea"}, "#ff0000") }},
		{"resize", func() bool { w := 300.0; return s.Resize(b, &w, nil) }},
		{"title", func() bool { return s.UpdateTitle("Roadmap") }},
		{"edge type", func() bool { return s.SetEdgeType(graph.EdgeStep) }},
		{"background", func() bool { return s.SetBackgroundColor("#101010") }},
		{"dots", func() bool { return s.SetDotColor("#abc") }},
		{"disconnect", func() bool { return s.Disconnect(graph.EdgeID(a, b)) }},
		{"delete", func() bool { return s.DeleteNode(b) }},
	}
	for _, st := range steps {
		if !st.run() {
			t.Fatalf("%s rejected", st.name)
		}
	}
	final := s.Snapshot()
	n := historyLen(s)
	if n != len(steps)+2 {
		t.Fatalf("history len = %d, want %d", n, len(steps)+2)
	}

	for i := 0; i < n; i++ {
		if !s.Undo() {
			t.Fatalf("undo %d failed", i)
		}
	}
	if s.Undo() {
		t.Error("undo past the start succeeded")
	}
	if !s.Snapshot().Equal(initial) {
		t.Error("undoing everything did not restore the initial document")
	}

	for i := 0; i < n; i++ {
		if !s.Redo() {
			t.Fatalf("redo %d failed", i)
		}
	}
	if !s.Snapshot().Equal(final) {
		t.Error("redoing everything did not reach the final document")
	}
}

func TestNoOpEditsAreNotRecorded(t *testing.T) {
	s, rec := newStore(t)
	a := mustChild(t, s, graph.RootID)
	rec.reset()
	base := historyLen(s)

	n, _ := s.Node(a)
	checks := map[string]bool{
		"same position":   s.MoveNodes(map[string]graph.Position{a: n.Position}),
		"missing move":    s.MoveNodes(map[string]graph.Position{"ghost": {X: 1}}),
		"same title":      s.UpdateTitle("Plan"),
		"blank title":     s.UpdateTitle("   "),
		"same payload":    s.UpdateNode(a, n.Data, n.Style.Background),
		"missing update":  s.UpdateNode("ghost", graph.TextData{}, ""),
		"same size":       s.Resize(a, nil, nil),
		"same edge type":  s.SetEdgeType(graph.EdgeDefault),
		"same background": s.SetBackgroundColor(s.Settings().BackgroundColor),
		"missing delete":  s.DeleteNode("ghost"),
		"no edges":        s.Disconnect("ghost"),
	}
	for name, ok := range checks {
		if ok {
			t.Errorf("%s: reported a change", name)
		}
	}
	if historyLen(s) != base || rec.calls != 0 {
		t.Errorf("history %d→%d, broadcasts %d", base, historyLen(s), rec.calls)
	}
}

func TestRejectedEdits(t *testing.T) {
	s, rec := newStore(t)
	a := mustChild(t, s, graph.RootID)
	rec.reset()
	base := historyLen(s)

	if s.UpdateNode(a, graph.LinkData{URL: "https://x"}, "") {
		t.Error("payload of another type accepted")
	}
	if s.UpdateNode(a, nil, "red") {
		t.Error("invalid color accepted")
	}
	if s.SetBackgroundColor("blue") || s.SetDotColor("#12") {
		t.Error("invalid canvas color accepted")
	}
	if s.SetEdgeType("wiggly") {
		t.Error("unknown edge type accepted")
	}
	if _, ok := s.AddNode(graph.NewNode(a, graph.TypeText, graph.Position{})); ok {
		t.Error("duplicate node id accepted")
	}
	if _, ok := s.AddChild("ghost", graph.TypeText); ok {
		t.Error("child of a missing parent accepted")
	}
	if historyLen(s) != base || rec.calls != 0 {
		t.Error("rejected edits changed history or broadcast")
	}
}

func TestMalformedNodesNeverReachHistory(t *testing.T) {
	s, rec := newStore(t)
	base := historyLen(s)

	if _, ok := s.AddNode(graph.Node{ID: "x", Type: graph.TypeText, Data: graph.LinkData{URL: "https://x"}}); ok {
		t.Error("node with a link payload accepted as text")
	}
	if _, ok := s.AddNode(graph.Node{ID: "y", Type: "widget"}); ok {
		t.Error("unknown node type accepted")
	}

	s.SetClipboard(clipboard.Clipboard{Nodes: []graph.Node{
		{ID: "c", Type: graph.TypeImage, Data: graph.TextData{Label: "not an image"}},
	}})
	if s.Paste(graph.Position{}) {
		t.Error("clipboard with a mismatched payload pasted")
	}

	if _, ok := s.Node("x"); ok {
		t.Error("rejected node exists")
	}
	if historyLen(s) != base || s.CanUndo() || rec.calls != 0 {
		t.Error("rejected nodes left traces in history or broadcasts")
	}
}

func TestConnectValidation(t *testing.T) {
	s, rec := newStore(t)
	a := mustChild(t, s, graph.RootID)
	b := mustChild(t, s, a)
	c := mustChild(t, s, b)
	rec.reset()
	base := historyLen(s)

	tests := []struct {
		name string
		conn graph.Connection
		code apperr.Code
	}{
		{"self loop", graph.Connection{Source: a, Target: a}, apperr.ErrCodeSelfLoop},
		{"missing target", graph.Connection{Source: a, Target: "ghost"}, apperr.ErrCodeInvalidConnection},
		{"duplicate", graph.Connection{Source: a, Target: b}, apperr.ErrCodeInvalidConnection},
		{"cycle", graph.Connection{Source: c, Target: a}, apperr.ErrCodeCycle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := s.Connect(tt.conn); ok {
				t.Fatal("Connect accepted")
			}
			if err := s.ValidateConnection(tt.conn); !apperr.Is(err, tt.code) {
				t.Errorf("ValidateConnection() = %v, want %s", err, tt.code)
			}
		})
	}
	if historyLen(s) != base || rec.calls != 0 {
		t.Error("rejected connections changed history or broadcast")
	}

	e, ok := s.Connect(graph.Connection{Source: b, Target: a})
	if !ok {
		t.Fatal("direct bidirectional pair rejected")
	}
	if e.SourceHandle != graph.HandleBottomSource || e.TargetHandle != graph.HandleTopTarget {
		t.Errorf("handles = %s/%s", e.SourceHandle, e.TargetHandle)
	}
}

func TestDeleteNodeCascades(t *testing.T) {
	s, _ := newStore(t)
	a := mustChild(t, s, graph.RootID)
	b := mustChild(t, s, a)
	c := mustChild(t, s, a)
	keep := mustChild(t, s, graph.RootID)
	if _, ok := s.Connect(graph.Connection{Source: keep, Target: c}); !ok {
		t.Fatal("connect rejected")
	}
	before := s.Snapshot()

	if !s.DeleteNode(a) {
		t.Fatal("DeleteNode failed")
	}
	for _, id := range []string{a, b, c} {
		if _, ok := s.Node(id); ok {
			t.Errorf("node %s survived", id)
		}
	}
	if _, ok := s.Node(keep); !ok {
		t.Error("unrelated node removed")
	}
	for _, e := range s.Snapshot().Edges {
		if e.Touches(a) || e.Touches(b) || e.Touches(c) {
			t.Errorf("edge %s survived", e.ID)
		}
	}

	if s.DeleteNode(graph.RootID) {
		t.Error("root deleted")
	}

	s.Undo()
	if !s.Snapshot().Equal(before) {
		t.Error("undo did not restore the subtree")
	}
}

func TestDeleteSelectionSkipsRoot(t *testing.T) {
	s, _ := newStore(t)
	a := mustChild(t, s, graph.RootID)
	b := mustChild(t, s, graph.RootID)
	s.Select(graph.RootID, false)
	s.Select(a, true)
	base := historyLen(s)

	if !s.DeleteSelection() {
		t.Fatal("DeleteSelection failed")
	}
	if _, ok := s.Node(graph.RootID); !ok {
		t.Error("root deleted")
	}
	if _, ok := s.Node(a); ok {
		t.Error("selected node survived")
	}
	if _, ok := s.Node(b); !ok {
		t.Error("unselected node deleted")
	}
	if historyLen(s) != base+1 {
		t.Errorf("history grew by %d, want 1", historyLen(s)-base)
	}

	s.ClearSelection()
	s.Select(graph.RootID, false)
	if s.DeleteSelection() {
		t.Error("deleting a root-only selection reported a change")
	}
}

func TestAutoLayout(t *testing.T) {
	s, rec := newStore(t)
	var kids []string
	for range 5 {
		kids = append(kids, mustChild(t, s, graph.RootID))
	}
	rec.reset()
	base := historyLen(s)

	moved, ok := s.AutoLayout(graph.RootID)
	if !ok || moved == 0 {
		t.Fatalf("AutoLayout() = %d, %v", moved, ok)
	}
	if historyLen(s) != base+1 {
		t.Error("layout must be one history entry")
	}
	rows := map[float64]int{}
	for _, id := range kids {
		n, _ := s.Node(id)
		if int(n.Position.X)%20 != 0 || int(n.Position.Y)%20 != 0 {
			t.Errorf("%s at %v is off the grid", id, n.Position)
		}
		rows[n.Position.Y]++
	}
	if len(rows) != 2 {
		t.Errorf("rows = %v, want 3 + 2", rows)
	}
	if root, _ := s.Node(graph.RootID); root.Position != (graph.Position{}) {
		t.Error("layout moved the root")
	}
	if len(rec.events) != moved {
		t.Errorf("broadcast %d updates for %d moves", len(rec.events), moved)
	}

	if _, ok := s.AutoLayout(graph.RootID); ok {
		t.Error("second layout reported changes")
	}
	if _, ok := s.AutoLayout(kids[0]); ok {
		t.Error("layout of a leaf reported changes")
	}
}

func TestSaveMovesWatermark(t *testing.T) {
	p := &memPersister{}
	s, _ := newStore(t, func(o *Options) { o.Persister = p })
	ctx := context.Background()

	mustChild(t, s, graph.RootID)
	if !s.HasUnsavedChanges() {
		t.Error("edit not reported as unsaved")
	}
	if err := s.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if s.CanUndo() || s.HasUnsavedChanges() {
		t.Error("undo still possible after save")
	}
	rec, ok := p.records["doc"]
	if !ok || len(rec.Nodes) != 2 || rec.UserID != "alice" || rec.Title != "Plan" {
		t.Errorf("saved record = %+v", rec)
	}

	s.UpdateTitle("Next")
	p.fail = errors.New("disk full")
	if err := s.Save(ctx); err == nil {
		t.Fatal("Save succeeded with a failing persister")
	}
	if !s.CanUndo() {
		t.Error("failed save moved the watermark")
	}
}

func TestSaveWithoutPersister(t *testing.T) {
	s, _ := newStore(t)
	if err := s.Save(context.Background()); !apperr.Is(err, apperr.ErrCodeUnsupported) {
		t.Errorf("Save() = %v, want UNSUPPORTED", err)
	}
}

func TestOpen(t *testing.T) {
	p := &memPersister{}
	ctx := context.Background()
	opts := Options{DocumentID: "trip", UserID: "alice", Logger: log.New(io.Discard)}

	s, err := Open(ctx, p, opts)
	if err != nil {
		t.Fatalf("Open new: %v", err)
	}
	if s.Title() != "trip" || len(s.Snapshot().Nodes) != 1 {
		t.Errorf("new document = %+v", s.Snapshot())
	}
	mustChild(t, s, graph.RootID)
	if err := s.Save(ctx); err != nil {
		t.Fatal(err)
	}

	again, err := Open(ctx, p, opts)
	if err != nil {
		t.Fatalf("Open existing: %v", err)
	}
	if !again.Snapshot().Equal(s.Snapshot()) {
		t.Error("reopened document differs")
	}
	if again.CanUndo() {
		t.Error("reopened document has history")
	}

	p.fail = nil
	p.records["broken"] = storage.Record{DocumentID: "broken", Edges: []graph.Edge{{Source: "x", Target: "y"}}}
	if _, err := Open(ctx, p, Options{DocumentID: "broken"}); err == nil {
		t.Error("Open accepted an inconsistent record")
	}
}

func TestApplyRemoteSkipsHistory(t *testing.T) {
	s, rec := newStore(t)
	base := historyLen(s)

	ev, err := collab.NodeEvent(collab.ActionCreate, graph.NewNode("r1", graph.TypeText, graph.Position{X: 40}), "bob")
	if err != nil {
		t.Fatal(err)
	}
	if got := s.ApplyRemote(ev); got != collab.ResultApplied {
		t.Fatalf("ApplyRemote() = %v", got)
	}
	if got := s.ApplyRemote(ev); got != collab.ResultDuplicate {
		t.Errorf("second create = %v, want duplicate", got)
	}
	if _, ok := s.Node("r1"); !ok {
		t.Error("remote node missing")
	}

	echo, _ := collab.NodeEvent(collab.ActionCreate, graph.NewNode("r2", graph.TypeText, graph.Position{}), "alice")
	if got := s.ApplyRemote(echo); got != collab.ResultEcho {
		t.Errorf("echo = %v", got)
	}
	if _, ok := s.Node("r2"); ok {
		t.Error("echo applied")
	}

	if historyLen(s) != base || s.CanUndo() {
		t.Error("remote events reached history")
	}
	if rec.calls != 0 {
		t.Error("remote events were broadcast back")
	}
}

func TestSearch(t *testing.T) {
	s, _ := newStore(t)
	a := mustChild(t, s, graph.RootID)
	b := mustChild(t, s, graph.RootID)
	s.UpdateNode(a, graph.TextData{Label: "Budget PLAN"}, "")
	s.UpdateNode(b, graph.TextData{Label: "Venue"}, "")

	got := s.Search("plan")
	if len(got) != 2 || got[0] != graph.RootID || got[1] != a {
		t.Errorf("Search(plan) = %v", got)
	}
	if got := s.Search("  "); got != nil {
		t.Errorf("blank query matched %v", got)
	}
}

func TestDrop(t *testing.T) {
	s, rec := newStore(t)

	id, ok := s.Drop(DropItem{Type: graph.TypeLink}, graph.Position{X: 33, Y: 44})
	if !ok {
		t.Fatal("palette drop rejected")
	}
	n, _ := s.Node(id)
	if n.Type != graph.TypeLink || n.Position != (graph.Position{X: 33, Y: 44}) {
		t.Errorf("dropped node = %+v", n)
	}

	id, ok = s.Drop(DropItem{ImageURL: "https://cdn/x.png"}, graph.Position{})
	if !ok {
		t.Fatal("image drop rejected")
	}
	n, _ = s.Node(id)
	if img, isImg := n.Data.(graph.ImageData); !isImg || img.ImageURL != "https://cdn/x.png" {
		t.Errorf("image payload = %#v", n.Data)
	}

	if _, ok := s.Drop(DropItem{ImageURL: "file:///etc/passwd"}, graph.Position{}); ok {
		t.Error("unsafe image url accepted")
	}
	if _, ok := s.Drop(DropItem{}, graph.Position{}); ok {
		t.Error("drop without a type accepted")
	}
	if len(rec.events) != 2 {
		t.Errorf("events = %d, want 2", len(rec.events))
	}
}
