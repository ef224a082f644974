package nodelink

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/graph"
)

// Canvas pixels per inch. Graphviz sizes nodes in inches.
const pixelsPerInch = 72.0

// Options configures diagram generation.
type Options struct {
	// Pinned keeps canvas positions instead of computing a ranked layout.
	Pinned bool
	// Detailed adds the node type and primary URL to each label.
	Detailed bool
}

// ToDOT converts a document to Graphviz DOT.
func ToDOT(d *graph.Document, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	if d.Title != "" {
		fmt.Fprintf(&buf, "  label=%q;\n  labelloc=t;\n", d.Title)
	}
	bg := d.Settings.BackgroundColor
	if bg == "" {
		bg = "transparent"
	}
	fmt.Fprintf(&buf, "  bgcolor=%q;\n", bg)
	fmt.Fprintf(&buf, "  splines=%q;\n", splines(d.Settings.EdgeType))
	if opts.Pinned {
		// pos values are canvas pixels.
		buf.WriteString("  inputscale=72;\n")
		buf.WriteString("  overlap=true;\n")
	} else {
		buf.WriteString("  rankdir=TB;\n  ranksep=0.5;\n  nodesep=0.3;\n")
	}
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("\n")

	for _, n := range d.Nodes() {
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(nodeAttrs(n, opts), ", "))
	}

	buf.WriteString("\n")
	for _, e := range d.Edges() {
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.Source, e.Target, strings.Join(edgeAttrs(e), ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(n graph.Node, opts Options) []string {
	attrs := []string{fmt.Sprintf("label=%q", label(n, opts.Detailed))}
	if shape := shapes[n.Type]; shape != "" {
		attrs = append(attrs, "shape="+shape)
	}
	if n.Style.Background != "" {
		attrs = append(attrs, fmt.Sprintf("fillcolor=%q", n.Style.Background))
	}
	if u := href(n); u != "" {
		attrs = append(attrs, fmt.Sprintf("URL=%q", u))
	}
	if opts.Pinned {
		w, h := n.Size()
		c := n.Center()
		// Graphviz's y axis points up; the canvas's points down.
		attrs = append(attrs,
			fmt.Sprintf("pos=\"%s,%s!\"", num(c.X), num(-c.Y)),
			"width="+num(w/pixelsPerInch),
			"height="+num(h/pixelsPerInch),
			"fixedsize=true",
		)
	}
	return attrs
}

var shapes = map[graph.NodeType]string{
	graph.TypeLink:     "note",
	graph.TypeImage:    "box3d",
	graph.TypeAudio:    "cds",
	graph.TypeEmbed:    "tab",
	graph.TypeSubMap:   "folder",
	graph.TypePlaylist: "component",
}

func label(n graph.Node, detailed bool) string {
	l := n.Label()
	if !detailed {
		return l
	}
	parts := []string{l, string(n.Type)}
	if u := href(n); u != "" {
		parts = append(parts, u)
	}
	return strings.Join(parts, "\n")
}

func href(n graph.Node) string {
	switch p := n.Data.(type) {
	case graph.LinkData:
		return p.URL
	case graph.ImageData:
		return p.ImageURL
	case graph.AudioData:
		return p.AudioURL
	case graph.EmbedData:
		return p.EmbedURL
	case graph.SocialData:
		return p.URL
	}
	return ""
}

func edgeAttrs(e graph.Edge) []string {
	attrs := []string{fmt.Sprintf("id=%q", e.ID)}
	if e.Type != "" {
		attrs = append(attrs, fmt.Sprintf("class=%q", "edge-"+string(e.Type)))
	}
	return attrs
}

// splines maps the document's edge type to the closest Graphviz routing.
func splines(t graph.EdgeType) string {
	switch t {
	case graph.EdgeStraight:
		return "line"
	case graph.EdgeStep, graph.EdgeSmoothStep:
		return "ortho"
	default:
		return "spline"
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// RenderSVG lays out and renders DOT source to SVG. opts must match the
// options the DOT was generated with.
func RenderSVG(ctx context.Context, dot string, opts Options) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()
	if opts.Pinned {
		gv.SetLayout(graphviz.NEATO)
	}

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInternal, err, "render")
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="(-?[0-9.]+)\s+(-?[0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root element so the SVG scales to its
// container.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}
