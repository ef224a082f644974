// Package pkg provides the core libraries of Mindcanvas, a collaborative
// mind-map editor.
//
// # Overview
//
// A mind map is a document: a graph of typed, positioned nodes joined by
// directed edges, with a protected root node. The pkg directory is
// organized into four areas:
//
//  1. Model - [graph] (documents, payloads, connection validation) and
//     [layout] (subtree auto-layout)
//  2. Editing - [history] (undo/redo log), [clipboard] (copy and paste)
//     and [editor] (the store that ties them together)
//  3. Collaboration - [collab] (events, transports, sessions) and [relay]
//     (websocket relay server)
//  4. Infrastructure - [storage] (file and MongoDB persistence), [render]
//     (Graphviz export), [observability] (hooks and Prometheus metrics)
//     and [errors]
//
// # Architecture
//
// Every local edit flows through the editor store:
//
//	keyboard / CLI command
//	         ↓
//	    [editor] Store (validate, apply, record in [history])
//	         ↓
//	    [collab] Session (diff → events → transport)
//	         ↓
//	    other editors: [collab] Apply (no history, no echo)
//
// Saving goes through a [storage] Persister; exporting goes through
// [render/nodelink] and Graphviz.
//
// # Quick Start
//
//	doc := graph.NewWithRoot("Roadmap")
//	store := editor.New(doc, editor.Options{DocumentID: "roadmap", UserID: "me"})
//
//	id, _ := store.AddChild(graph.RootID, graph.TypeText)
//	store.UpdateNode(id, graph.TextData{Label: "Q1"}, "")
//	store.AutoLayout(graph.RootID)
//
//	dot := nodelink.ToDOT(store.Document(), nodelink.Options{Pinned: true})
//	svg, _ := nodelink.RenderSVG(ctx, dot, nodelink.Options{Pinned: true})
//
// # Collaboration Transports
//
// [collab.MemoryBus] for tests, [collab/redischan] (Redis pub/sub),
// [collab/natschan] (NATS) and [collab/wschan] (a [relay] server) all
// implement [collab.Channel].
package pkg
