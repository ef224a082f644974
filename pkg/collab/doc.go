// Package collab merges collaborators' edits into a local document.
//
// Every locally committed mutation is broadcast as one or more [Event]s on a
// per-document [Channel]; every other client applies them with [Apply].
// There are no sequence numbers and no merge: the last event applied for an
// entity wins. Apply is idempotent and origin-filtered:
//
//   - events whose UserID is the local user are echoes and are ignored
//   - a create for an id that already exists is ignored
//   - an update or delete for a missing id is ignored
//
// Outbound events are derived with [Diff] from the document snapshots taken
// before and after a local mutation, so undo, redo and auto-layout broadcast
// exactly what changed.
//
// Transports live in subpackages: redischan (Redis pub/sub) and natschan
// (NATS subjects). [MemoryBus] connects clients within one process.
package collab
