package editor

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mindcanvas/pkg/clipboard"
	"github.com/matzehuels/mindcanvas/pkg/collab"
	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/graph"
	"github.com/matzehuels/mindcanvas/pkg/history"
	"github.com/matzehuels/mindcanvas/pkg/layout"
	"github.com/matzehuels/mindcanvas/pkg/observability"
	"github.com/matzehuels/mindcanvas/pkg/storage"
)

// Broadcaster publishes outbound collaboration events without blocking.
// [*collab.Session] implements it.
type Broadcaster interface {
	Broadcast(evs ...collab.Event)
}

// Options configure a Store. DocumentID and UserID are required for
// collaboration and persistence; the rest have usable defaults.
type Options struct {
	DocumentID string
	UserID     string

	Logger      *log.Logger
	Broadcaster Broadcaster
	Persister   storage.Persister

	Layout       layout.Options
	Validator    graph.Validator
	IDs          clipboard.IDFunc
	HistoryLimit int

	// LiveDrag broadcasts intermediate drag positions so peers can follow
	// the cursor. The final position is always broadcast.
	LiveDrag bool
}

// Store is the editor state of one document.
type Store struct {
	docID  string
	userID string

	doc  *graph.Document
	hist *history.Log
	clip clipboard.Clipboard
	vp   clipboard.Viewport

	drag    *dragSession
	preview *pastePreview

	bc        Broadcaster
	persister storage.Persister
	logger    *log.Logger

	layout    layout.Options
	validator graph.Validator
	ids       clipboard.IDFunc
	liveDrag  bool
}

// New creates a store editing doc. A nil doc starts a new document holding
// only the root node.
func New(doc *graph.Document, opts Options) *Store {
	if doc == nil {
		doc = graph.NewWithRoot("Untitled")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	lay := opts.Layout
	if lay == (layout.Options{}) {
		lay = layout.DefaultOptions()
	}
	ids := opts.IDs
	if ids == nil {
		ids = clipboard.TimeIDs(nil)
	}
	var hopts []history.Option
	if opts.HistoryLimit > 0 {
		hopts = append(hopts, history.WithLimit(opts.HistoryLimit))
	}
	return &Store{
		docID:     opts.DocumentID,
		userID:    opts.UserID,
		doc:       doc,
		hist:      history.NewLog(logger, hopts...),
		vp:        clipboard.Identity,
		bc:        opts.Broadcaster,
		persister: opts.Persister,
		logger:    logger,
		layout:    lay,
		validator: opts.Validator,
		ids:       ids,
		liveDrag:  opts.LiveDrag,
	}
}

// Open loads docID from p and returns a store editing it. A document that
// does not exist yet starts with only the root node, titled after its id.
func Open(ctx context.Context, p storage.Persister, opts Options) (*Store, error) {
	opts.Persister = p
	rec, err := p.Load(ctx, opts.DocumentID)
	switch {
	case err == nil:
		doc, err := rec.Document()
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeStorage, err, "open document %s", opts.DocumentID)
		}
		return New(doc, opts), nil
	case apperr.Is(err, apperr.ErrCodeNotFound):
		return New(graph.NewWithRoot(opts.DocumentID), opts), nil
	default:
		return nil, err
	}
}

// DocumentID returns the id of the edited document.
func (s *Store) DocumentID() string { return s.docID }

// UserID returns the local user id.
func (s *Store) UserID() string { return s.userID }

// Snapshot returns a copy of the current document state.
func (s *Store) Snapshot() graph.Snapshot { return s.doc.Snapshot() }

// Document returns a deep copy of the document, for rendering and export.
func (s *Store) Document() *graph.Document { return s.doc.Clone() }

// Node returns a copy of the node with the given id.
func (s *Store) Node(id string) (graph.Node, bool) { return s.doc.Node(id) }

// Title returns the document title.
func (s *Store) Title() string { return s.doc.Title }

// Settings returns the document display settings.
func (s *Store) Settings() graph.Settings { return s.doc.Settings }

// CanUndo reports whether Undo would do anything.
func (s *Store) CanUndo() bool { return s.hist.CanUndo() }

// CanRedo reports whether Redo would do anything.
func (s *Store) CanRedo() bool { return s.hist.CanRedo() }

// HasUnsavedChanges reports whether the document moved since the last save.
func (s *Store) HasUnsavedChanges() bool { return s.hist.HasUnsavedChanges() }

// History returns the kinds of all history entries and the current index.
func (s *Store) History() ([]history.Kind, int) { return s.hist.Entries(), s.hist.CurrentIndex() }

// Viewport returns the canvas transform used to map cursor positions.
func (s *Store) Viewport() clipboard.Viewport { return s.vp }

// SetViewport replaces the canvas transform. It is not a document change.
func (s *Store) SetViewport(vp clipboard.Viewport) { s.vp = vp }

// do applies, records and broadcasts one history action. An active drag is
// settled first.
func (s *Store) do(a history.Action) bool {
	s.settleDrag()
	before := s.doc.Snapshot()
	if !s.hist.Do(s.doc, a) {
		return false
	}
	observability.Editor().OnCommit(context.Background(), string(a.Kind()))
	s.publish(before)
	return true
}

// record commits an action whose effect is already in the document. The
// caller broadcasts.
func (s *Store) record(a history.Action) bool {
	if !s.hist.Commit(a) {
		return false
	}
	observability.Editor().OnCommit(context.Background(), string(a.Kind()))
	return true
}

// publish broadcasts the difference between before and the current state.
func (s *Store) publish(before graph.Snapshot) {
	if s.bc == nil {
		return
	}
	if evs := collab.Diff(s.docID, before, s.doc.Snapshot(), s.userID); len(evs) > 0 {
		s.bc.Broadcast(evs...)
	}
}

// publishNodes broadcasts the current state of the given nodes as updates.
func (s *Store) publishNodes(ids []string) {
	if s.bc == nil {
		return
	}
	var evs []collab.Event
	for _, id := range ids {
		n, ok := s.doc.Node(id)
		if !ok {
			continue
		}
		if ev, err := collab.NodeEvent(collab.ActionUpdate, n, s.userID); err == nil {
			evs = append(evs, ev)
		}
	}
	if len(evs) > 0 {
		s.bc.Broadcast(evs...)
	}
}

// reject reports a refused gesture.
func (s *Store) reject(op string, err error) bool {
	code := apperr.GetCode(err)
	if apperr.IsRejection(err) {
		s.logger.Debug("editor: rejected", "op", op, "code", code, "err", err)
	} else {
		s.logger.Warn("editor: rejected", "op", op, "code", code, "err", err)
	}
	observability.Editor().OnRejected(context.Background(), op, string(code))
	return false
}

// Undo reverts the most recent local action above the save watermark and
// broadcasts the result.
func (s *Store) Undo() bool {
	s.CancelDrag()
	a, ok := s.hist.Peek()
	if !ok {
		return false
	}
	before := s.doc.Snapshot()
	if !s.hist.Undo(s.doc) {
		return false
	}
	observability.Editor().OnUndo(context.Background(), string(a.Kind()))
	s.publish(before)
	return true
}

// Redo re-applies the most recently undone action and broadcasts the result.
func (s *Store) Redo() bool {
	s.CancelDrag()
	before := s.doc.Snapshot()
	if !s.hist.Redo(s.doc) {
		return false
	}
	kinds := s.hist.Entries()
	observability.Editor().OnRedo(context.Background(), string(kinds[s.hist.CurrentIndex()]))
	s.publish(before)
	return true
}

// Save persists the document and, on success, moves the history watermark
// so undo cannot travel past the saved state.
func (s *Store) Save(ctx context.Context) error {
	if s.persister == nil {
		return apperr.New(apperr.ErrCodeUnsupported, "no persister configured")
	}
	start := time.Now()
	if err := s.persister.Save(ctx, storage.RecordOf(s.docID, s.userID, s.doc)); err != nil {
		s.logger.Warn("editor: save failed", "doc", s.docID, "err", err)
		return err
	}
	s.hist.MarkSaved()
	s.logger.Debug("editor: saved", "doc", s.docID, "took", time.Since(start))
	return nil
}

// ApplyRemote merges a collaborator's event into the document. History is
// not touched and nothing is broadcast.
func (s *Store) ApplyRemote(ev collab.Event) collab.Result {
	res, err := collab.Apply(s.doc, ev, s.userID)
	observability.Editor().OnRemoteApply(context.Background(), string(ev.Type), string(ev.Action), res.String())
	switch {
	case err != nil:
		s.logger.Warn("editor: dropping remote event", "id", ev.ID, "type", ev.Type, "action", ev.Action, "err", err)
	case res != collab.ResultApplied && res != collab.ResultEcho:
		s.logger.Debug("editor: remote event ignored", "id", ev.ID, "action", ev.Action, "result", res)
	}
	return res
}
