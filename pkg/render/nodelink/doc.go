// Package nodelink renders mind maps as node-link diagrams with Graphviz.
//
// [ToDOT] produces DOT source; [RenderSVG] lays it out and renders it
// in-process with go-graphviz. Two layouts are supported:
//
//   - Pinned (the default of the export command): every node keeps its
//     canvas position and size, and Graphviz only routes the edges (neato
//     with pinned pos attributes). The export looks like the canvas.
//   - Ranked: positions are ignored and dot arranges the map top to bottom,
//     which is useful for maps that were never laid out.
//
// Node fill colours come from each node's background. The document's edge
// type picks the spline style; per-edge types are kept as SVG classes so a
// stylesheet can tell them apart.
package nodelink
