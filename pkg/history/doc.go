// Package history implements the undo/redo log of the editor.
//
// Every document mutation that the user can undo is recorded as an [Action].
// Actions form a closed set of variants, one per kind of mutation, each
// carrying the data needed to re-apply it and the previous state needed to
// revert it:
//
//   - [AddNodes]: nodes and edges inserted (new node, paste, drop)
//   - [MoveNodes]: a position map keyed by node id (drag, auto-layout)
//   - [Connect], [Disconnect]: edge creation and removal
//   - [DeleteNodes]: cascading deletion
//   - [UpdateNode], [ResizeNode]: per-node payload, style and size edits
//   - [UpdateTitle], [ChangeEdgeType], [ChangeBackgroundColor],
//     [ChangeDotColor]: document-level scalars
//
// # Watermark
//
// [Log] keeps a current index and a last-saved index. Undo never travels past
// the last-saved index: once a document has been persisted, the persisted
// state is the floor of the undo stack.
//
//	log := history.NewLog(nil)
//	log.Commit(history.MoveNodesFrom(doc, map[string]graph.Position{"2": {X: 40, Y: 200}}))
//	log.Undo(doc)
//	log.MarkSaved()
//
// Actions that fail validation are never committed, and a stored action that
// fails validation makes Undo/Redo a no-op. Neither case returns an error to
// the caller; both are logged.
package history
