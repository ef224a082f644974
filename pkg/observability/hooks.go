// Package observability provides hooks for metrics and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about editor commits, collaboration traffic, storage calls
// and relay connections.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, not by libraries, so the core packages stay
// free of any metrics framework. The prom subpackage provides a Prometheus
// implementation.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    m := prom.New()
//	    observability.SetEditorHooks(m)
//	    observability.SetCollabHooks(m)
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Editor().OnCommit(ctx, "move_node")
//	observability.Collab().OnPublish(ctx, "redis", "node", err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Editor Hooks
// =============================================================================

// EditorHooks receives events from the editor store.
type EditorHooks interface {
	// History events. kind is the history action kind.
	OnCommit(ctx context.Context, kind string)
	OnUndo(ctx context.Context, kind string)
	OnRedo(ctx context.Context, kind string)

	// OnRejected records a gesture refused by the editor, such as an illegal
	// connection. code is the error code of the rejection.
	OnRejected(ctx context.Context, op, code string)

	// OnRemoteApply records the outcome of applying a collaborator's event.
	OnRemoteApply(ctx context.Context, entity, action, result string)

	// OnLayout records an auto-layout run.
	OnLayout(ctx context.Context, moved int, duration time.Duration)
}

// =============================================================================
// Collaboration Hooks
// =============================================================================

// CollabHooks receives events from collaboration transports.
type CollabHooks interface {
	// OnPublish records an outbound event.
	OnPublish(ctx context.Context, transport, entity string, err error)

	// OnReceive records a decoded inbound event.
	OnReceive(ctx context.Context, transport, entity string)

	// OnDrop records an event discarded before delivery (malformed payload,
	// full queue).
	OnDrop(ctx context.Context, transport, reason string)
}

// =============================================================================
// Storage Hooks
// =============================================================================

// StorageHooks receives events from document persistence.
type StorageHooks interface {
	OnSave(ctx context.Context, backend string, duration time.Duration, err error)
	OnLoad(ctx context.Context, backend string, duration time.Duration, err error)
}

// =============================================================================
// Relay Hooks
// =============================================================================

// RelayHooks receives events from the websocket relay.
type RelayHooks interface {
	OnJoin(ctx context.Context, docID string)
	OnLeave(ctx context.Context, docID string)
	OnRelay(ctx context.Context, docID string, recipients int)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopEditorHooks is a no-op implementation of EditorHooks.
type NoopEditorHooks struct{}

func (NoopEditorHooks) OnCommit(context.Context, string)                      {}
func (NoopEditorHooks) OnUndo(context.Context, string)                        {}
func (NoopEditorHooks) OnRedo(context.Context, string)                        {}
func (NoopEditorHooks) OnRejected(context.Context, string, string)            {}
func (NoopEditorHooks) OnRemoteApply(context.Context, string, string, string) {}
func (NoopEditorHooks) OnLayout(context.Context, int, time.Duration)          {}

// NoopCollabHooks is a no-op implementation of CollabHooks.
type NoopCollabHooks struct{}

func (NoopCollabHooks) OnPublish(context.Context, string, string, error) {}
func (NoopCollabHooks) OnReceive(context.Context, string, string)        {}
func (NoopCollabHooks) OnDrop(context.Context, string, string)           {}

// NoopStorageHooks is a no-op implementation of StorageHooks.
type NoopStorageHooks struct{}

func (NoopStorageHooks) OnSave(context.Context, string, time.Duration, error) {}
func (NoopStorageHooks) OnLoad(context.Context, string, time.Duration, error) {}

// NoopRelayHooks is a no-op implementation of RelayHooks.
type NoopRelayHooks struct{}

func (NoopRelayHooks) OnJoin(context.Context, string)       {}
func (NoopRelayHooks) OnLeave(context.Context, string)      {}
func (NoopRelayHooks) OnRelay(context.Context, string, int) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	editorHooks  EditorHooks  = NoopEditorHooks{}
	collabHooks  CollabHooks  = NoopCollabHooks{}
	storageHooks StorageHooks = NoopStorageHooks{}
	relayHooks   RelayHooks   = NoopRelayHooks{}
	hooksMu      sync.RWMutex
)

// SetEditorHooks registers custom editor hooks.
// This should be called once at application startup before any editing.
func SetEditorHooks(h EditorHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		editorHooks = h
	}
}

// SetCollabHooks registers custom collaboration hooks.
func SetCollabHooks(h CollabHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		collabHooks = h
	}
}

// SetStorageHooks registers custom storage hooks.
func SetStorageHooks(h StorageHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		storageHooks = h
	}
}

// SetRelayHooks registers custom relay hooks.
func SetRelayHooks(h RelayHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		relayHooks = h
	}
}

// Editor returns the registered editor hooks.
func Editor() EditorHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return editorHooks
}

// Collab returns the registered collaboration hooks.
func Collab() CollabHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return collabHooks
}

// Storage returns the registered storage hooks.
func Storage() StorageHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return storageHooks
}

// Relay returns the registered relay hooks.
func Relay() RelayHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return relayHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	editorHooks = NoopEditorHooks{}
	collabHooks = NoopCollabHooks{}
	storageHooks = NoopStorageHooks{}
	relayHooks = NoopRelayHooks{}
}
