package editor

import (
	"github.com/matzehuels/mindcanvas/pkg/clipboard"
	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/graph"
	"github.com/matzehuels/mindcanvas/pkg/history"
)

var errEmptyClipboard = apperr.New(apperr.ErrCodeEmptyClipboard, "clipboard is empty")

type pastePreview struct {
	batch  clipboard.Batch
	anchor graph.Position // world position of the cursor when last moved
}

// Copy puts the selected nodes and the edges among them on the clipboard.
// It returns false, leaving the clipboard alone, when nothing is selected.
func (s *Store) Copy() bool {
	sel := s.doc.Selected()
	if len(sel) == 0 {
		return false
	}
	s.clip = clipboard.Copy(sel, s.doc.Edges())
	return true
}

// Cut copies the selection, then deletes it through the cascading delete as
// its own undoable step. The root is copied but never deleted.
func (s *Store) Cut() bool {
	if !s.Copy() {
		return false
	}
	s.DeleteSelection()
	return true
}

// Clipboard returns the current clipboard contents.
func (s *Store) Clipboard() clipboard.Clipboard { return s.clip }

// SetClipboard replaces the clipboard, for pasting content copied in another
// editor.
func (s *Store) SetClipboard(cb clipboard.Clipboard) { s.clip = cb }

// Paste inserts a copy of the clipboard centered on the cursor, given in
// screen coordinates, as one undoable step. The pasted nodes become the
// selection. An empty clipboard is a no-op.
func (s *Store) Paste(cursor graph.Position) bool {
	b, ok := clipboard.Paste(s.clip, cursor, s.vp, s.ids)
	if !ok {
		return s.reject("paste", errEmptyClipboard)
	}
	return s.insert(b)
}

// PasteImage creates an image node for url at the cursor, for pasting an
// image from the system clipboard.
func (s *Store) PasteImage(url string, cursor graph.Position) (string, bool) {
	if err := apperr.ValidateURL(url); err != nil {
		return "", s.reject("paste_image", err)
	}
	return s.Drop(DropItem{ImageURL: url}, s.vp.ScreenToWorld(cursor))
}

func (s *Store) insert(b clipboard.Batch) bool {
	for _, n := range b.Nodes {
		if s.doc.HasNode(n.ID) {
			return s.reject("paste", apperr.Wrap(apperr.ErrCodeInvalidInput, graph.ErrDuplicateNodeID, "node %s", n.ID))
		}
		if err := graph.ValidateNode(n); err != nil {
			return s.reject("paste", apperr.Wrap(apperr.ErrCodeInvalidInput, err, "node %s", n.ID))
		}
	}
	s.doc.ClearSelection()
	return s.do(history.AddNodesFrom(s.doc, b.Nodes, b.Edges))
}

// BeginPastePreview stages a paste at the cursor without touching the
// document, so the UI can show it following the pointer.
func (s *Store) BeginPastePreview(cursor graph.Position) bool {
	b, ok := clipboard.Paste(s.clip, cursor, s.vp, s.ids)
	if !ok {
		return s.reject("paste_preview", errEmptyClipboard)
	}
	s.preview = &pastePreview{batch: b, anchor: s.vp.ScreenToWorld(cursor)}
	return true
}

// MovePastePreview moves the staged paste to follow the cursor.
func (s *Store) MovePastePreview(cursor graph.Position) bool {
	if s.preview == nil {
		return false
	}
	world := s.vp.ScreenToWorld(cursor)
	s.preview.batch = s.preview.batch.Translate(world.Sub(s.preview.anchor))
	s.preview.anchor = world
	return true
}

// PastePreview returns the staged paste, if any.
func (s *Store) PastePreview() (clipboard.Batch, bool) {
	if s.preview == nil {
		return clipboard.Batch{}, false
	}
	return s.preview.batch, true
}

// CommitPastePreview inserts the staged paste where it currently is.
func (s *Store) CommitPastePreview() bool {
	p := s.preview
	if p == nil {
		return false
	}
	s.preview = nil
	return s.insert(p.batch)
}

// CancelPastePreview drops the staged paste. Nothing was applied, so there
// is nothing to revert or broadcast.
func (s *Store) CancelPastePreview() bool {
	if s.preview == nil {
		return false
	}
	s.preview = nil
	return true
}

// Cancel aborts whatever gesture is pending: a paste preview first, then a
// drag. It is bound to Escape.
func (s *Store) Cancel() bool {
	if s.CancelPastePreview() {
		return true
	}
	return s.CancelDrag()
}
