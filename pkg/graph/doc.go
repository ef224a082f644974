// Package graph provides the in-memory document model of a mind map: typed,
// positioned nodes connected by directed edges, plus the document-level
// attributes (title, edge routing, canvas colors).
//
// # Overview
//
// A [Document] is a single mutable value owned by one editor. Nodes and edges
// are stored in insertion order with map indices for O(1) lookup, and outgoing
// and incoming adjacency lists for structural queries. Accessors return
// copies; all mutation goes through explicit methods so that callers (the
// history log, the collaboration layer) always see a consistent state.
//
// # Node Payloads
//
// Every node carries a [Payload] whose concrete type is fixed by the node's
// [NodeType]. The set of payload types is closed: [TextData], [LinkData],
// [ImageData], [AudioData], [EmbedData], [SocialData], [SubMapData] and
// [PlaylistData]. JSON encoding is discriminated on the node's "type" field:
//
//	{
//	  "id": "7",
//	  "type": "link",
//	  "position": {"x": 120, "y": 240},
//	  "data": {"url": "https://go.dev", "displayText": "Go"},
//	  "style": {"background": "#ffe4b5"}
//	}
//
// # Structure Queries
//
// [Document.Children] and [Document.Parents] follow edges one hop.
// [Document.Descendants] and [Document.Ancestors] compute the transitive
// closure and carry an explicit visited set, because the model permits a
// direct bidirectional pair (A→B and B→A) and must not recurse forever on it.
//
// # Connections
//
// [Validator.Validate] decides whether a proposed [Connection] is legal: no
// self-loops, both endpoints present, no duplicate, and no cycle longer than
// a direct bidirectional pair. Validation is pure; callers add the returned
// edge themselves.
//
// # Root Node
//
// The node with id [RootID] ("1") is the root of every document. It can never
// be removed, and cascading deletes stop at it.
package graph
