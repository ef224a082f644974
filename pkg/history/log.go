package history

import (
	"fmt"

	"github.com/charmbracelet/log"

	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/graph"
)

// Log is a linear undo/redo log with a last-saved watermark.
//
// Invariants: -1 <= LastSavedIndex() <= CurrentIndex() < Len().
// CanUndo is CurrentIndex() > LastSavedIndex(); CanRedo is
// CurrentIndex() < Len()-1.
//
// Log is not safe for concurrent use.
type Log struct {
	entries   []Action
	current   int
	lastSaved int
	limit     int
	logger    *log.Logger
}

// Option configures a Log.
type Option func(*Log)

// WithLimit caps the number of retained entries. When the log grows past the
// limit the oldest entries are discarded. Zero means unlimited.
func WithLimit(n int) Option {
	return func(l *Log) { l.limit = n }
}

// NewLog returns an empty log. A nil logger uses log.Default().
func NewLog(logger *log.Logger, opts ...Option) *Log {
	if logger == nil {
		logger = log.Default()
	}
	l := &Log{current: -1, lastSaved: -1, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Commit appends an action that has already been applied to the document.
// Any redo branch beyond the current index is discarded.
//
// An action that fails validation is dropped: Commit logs a warning and
// returns false, leaving the log unchanged.
func (l *Log) Commit(a Action) bool {
	if err := check(a); err != nil {
		l.logger.Warn("history: dropping malformed action", "err", err)
		return false
	}
	l.entries = append(l.entries[:l.current+1], a)
	l.current++
	l.trim()
	return true
}

// Do applies a to d and commits it. A malformed action is neither applied
// nor committed.
func (l *Log) Do(d *graph.Document, a Action) bool {
	if err := check(a); err != nil {
		l.logger.Warn("history: dropping malformed action", "err", err)
		return false
	}
	a.apply(d)
	return l.Commit(a)
}

// trim drops the oldest entries beyond the limit, shifting both indices.
func (l *Log) trim() {
	if l.limit <= 0 || len(l.entries) <= l.limit {
		return
	}
	n := len(l.entries) - l.limit
	l.entries = append([]Action(nil), l.entries[n:]...)
	l.current -= n
	l.lastSaved = max(l.lastSaved-n, -1)
}

// Undo reverts the action at the current index. It is a no-op returning
// false when nothing can be undone or when the stored action is malformed.
func (l *Log) Undo(d *graph.Document) bool {
	if !l.CanUndo() {
		return false
	}
	a := l.entries[l.current]
	if err := check(a); err != nil {
		l.logger.Warn("history: cannot undo malformed action", "index", l.current, "err", err)
		return false
	}
	a.revert(d)
	l.current--
	l.logger.Debug("history: undo", "kind", a.Kind(), "index", l.current)
	return true
}

// Redo re-applies the action after the current index. It is a no-op
// returning false when nothing can be redone or when the stored action is
// malformed.
func (l *Log) Redo(d *graph.Document) bool {
	if !l.CanRedo() {
		return false
	}
	a := l.entries[l.current+1]
	if err := check(a); err != nil {
		l.logger.Warn("history: cannot redo malformed action", "index", l.current+1, "err", err)
		return false
	}
	a.apply(d)
	l.current++
	l.logger.Debug("history: redo", "kind", a.Kind(), "index", l.current)
	return true
}

// MarkSaved moves the watermark to the current index. Undo cannot travel
// below it until new actions are committed.
func (l *Log) MarkSaved() { l.lastSaved = l.current }

// CanUndo reports whether an action above the watermark can be undone.
func (l *Log) CanUndo() bool { return l.current > l.lastSaved }

// CanRedo reports whether an undone action can be re-applied.
func (l *Log) CanRedo() bool { return l.current < len(l.entries)-1 }

// HasUnsavedChanges reports whether the current index differs from the
// watermark.
func (l *Log) HasUnsavedChanges() bool { return l.current != l.lastSaved }

// Len returns the number of entries, including undone ones.
func (l *Log) Len() int { return len(l.entries) }

// CurrentIndex returns the index of the most recently applied action, or -1.
func (l *Log) CurrentIndex() int { return l.current }

// LastSavedIndex returns the watermark, or -1 if nothing was saved.
func (l *Log) LastSavedIndex() int { return l.lastSaved }

// Entries returns the kinds of all entries in order.
func (l *Log) Entries() []Kind {
	out := make([]Kind, len(l.entries))
	for i, a := range l.entries {
		out[i] = a.Kind()
	}
	return out
}

// Peek returns the action that Undo would revert.
func (l *Log) Peek() (Action, bool) {
	if !l.CanUndo() {
		return nil, false
	}
	return l.entries[l.current], true
}

// Clear drops every entry and resets both indices.
func (l *Log) Clear() {
	l.entries = nil
	l.current, l.lastSaved = -1, -1
}

func check(a Action) error {
	if a == nil {
		return apperr.New(apperr.ErrCodeMalformedAction, "nil action")
	}
	return a.validate()
}

func errNoPrevious(k Kind) error {
	return apperr.New(apperr.ErrCodeMalformedAction, "%s: missing previous state", k)
}

func errMalformed(k Kind, format string, args ...any) error {
	return apperr.New(apperr.ErrCodeMalformedAction, "%s: %s", k, fmt.Sprintf(format, args...))
}
