// Package editor owns the state of one open mind map and is its only
// mutation surface.
//
// A [Store] holds the document, the undo/redo log, the clipboard, the drag
// and paste-preview sessions, and the collaborators the editor talks to:
// a [Broadcaster] for outbound collaboration events and a
// [storage.Persister] for saves. Every gesture is one method call. A
// successful local mutation is applied to the document, recorded in
// history and then broadcast, in that order. Rejected gestures change
// nothing and report false.
//
// Remote events enter through [Store.ApplyRemote]; they change the document
// but never the history, so a user can only undo their own edits.
//
// # Threading
//
// A Store is not safe for concurrent use. Drive it from one goroutine, the
// UI event loop, and deliver remote events to that loop as messages.
package editor
