// Package render exports mind maps as images.
//
// The [nodelink] subpackage turns a document into Graphviz DOT and renders
// it to SVG in-process. This package converts that SVG to PDF or PNG with
// the external rsvg-convert tool (from librsvg):
//
//	dot := nodelink.ToDOT(doc, nodelink.Options{Pinned: true})
//	svg, err := nodelink.RenderSVG(ctx, dot, nodelink.Options{Pinned: true})
//	pdf, err := render.ToPDF(ctx, svg)
//
// [nodelink]: github.com/matzehuels/mindcanvas/pkg/render/nodelink
package render
