package cli

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/graph"
	"github.com/matzehuels/mindcanvas/pkg/render"
	"github.com/matzehuels/mindcanvas/pkg/render/nodelink"
)

// formatJSON exports the document itself, for 'new --import'.
const formatJSON = "json"

type exportOptions struct {
	output   string
	formats  string
	input    string
	ranked   bool
	detailed bool
	scale    float64
	noCache  bool
}

// renderCacheTTL bounds how long rendered output is reused.
const renderCacheTTL = 7 * 24 * time.Hour

// exportCommand writes a document as DOT, SVG, PDF, PNG or JSON.
func (c *CLI) exportCommand() *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export [document-id]",
		Short: "Export a mind map as DOT, SVG, PDF, PNG or JSON",
		Long: `Export a mind map.

By default nodes keep their canvas positions and Graphviz only routes the
edges. --ranked ignores positions and lets Graphviz arrange the map top to
bottom. PDF and PNG need rsvg-convert from librsvg.

With --in the document is read from a JSON file instead of storage.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: c.completeDocumentIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && opts.input == "" {
				return apperr.New(apperr.ErrCodeInvalidInput, "give a document id or --in <file>")
			}
			var docID string
			if len(args) == 1 {
				docID = args[0]
			}
			return c.runExport(cmd.Context(), docID, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (one format) or base path (several)")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "svg", "output format(s): dot, svg, pdf, png, json (comma-separated)")
	cmd.Flags().StringVar(&opts.input, "in", "", "read the document from a JSON file")
	cmd.Flags().BoolVar(&opts.ranked, "ranked", false, "compute a top-down layout instead of keeping positions")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "add node type and URL to labels")
	cmd.Flags().Float64Var(&opts.scale, "scale", 2, "PNG scale factor")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "always re-render instead of reusing cached output")

	return cmd
}

func (c *CLI) runExport(ctx context.Context, docID string, opts exportOptions) error {
	formats, err := parseFormats(opts.formats)
	if err != nil {
		return err
	}
	doc, name, err := c.loadDocument(ctx, docID, opts.input)
	if err != nil {
		return err
	}

	nl := nodelink.Options{Pinned: !opts.ranked, Detailed: opts.detailed}
	dot := nodelink.ToDOT(doc, nl)
	cache := c.renderCache(ctx, opts.noCache)

	var svg []byte
	renderSVG := func() ([]byte, error) {
		if svg != nil {
			return svg, nil
		}
		out, err := render.Cached(ctx, cache, render.Key(render.FormatSVG, []byte(dot)), func() ([]byte, error) {
			spinner := newSpinner(ctx, "Rendering with Graphviz...")
			spinner.Start()
			defer spinner.Stop()
			return nodelink.RenderSVG(ctx, dot, nl)
		})
		if err != nil {
			return nil, err
		}
		svg = out
		return svg, nil
	}
	convert := func(f render.Format, extra []string, fn func([]byte) ([]byte, error)) ([]byte, error) {
		src, err := renderSVG()
		if err != nil {
			return nil, err
		}
		return render.Cached(ctx, cache, render.Key(f, src, extra...), func() ([]byte, error) {
			return fn(src)
		})
	}

	var written []string
	for _, f := range formats {
		var data []byte
		switch f {
		case formatJSON:
			data, err = graph.Marshal(doc)
		case string(render.FormatDOT):
			data = []byte(dot)
		case string(render.FormatSVG):
			data, err = renderSVG()
		case string(render.FormatPDF):
			data, err = convert(render.FormatPDF, nil, func(src []byte) ([]byte, error) {
				return render.ToPDF(ctx, src)
			})
		case string(render.FormatPNG):
			data, err = convert(render.FormatPNG, []string{strconv.FormatFloat(opts.scale, 'g', -1, 64)}, func(src []byte) ([]byte, error) {
				return render.ToPNG(ctx, src, opts.scale)
			})
		}
		if err != nil {
			return err
		}

		path := outputPath(opts.output, name, f, len(formats) > 1)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return apperr.Wrap(apperr.ErrCodeInternal, err, "write %s", path)
		}
		written = append(written, path)
	}

	printSuccess("Exported %s", StyleHighlight.Render(doc.Title))
	for _, p := range written {
		printFile(p)
	}
	return nil
}

// renderCache opens the per-user render cache. Export still works, only
// slower, when the cache directory is unusable.
func (c *CLI) renderCache(ctx context.Context, disabled bool) render.Cache {
	if disabled {
		return nil
	}
	fc, err := render.NewFileCache(render.DefaultCacheDir(), renderCacheTTL)
	if err != nil {
		c.logger(ctx).Debug("render cache disabled", "err", err)
		return nil
	}
	return fc
}

// loadDocument reads a document from a JSON file when path is set, or from
// the configured storage otherwise. name is used for default output paths.
func (c *CLI) loadDocument(ctx context.Context, docID, path string) (*graph.Document, string, error) {
	if path != "" {
		doc, err := graph.ReadFile(path)
		if err != nil {
			return nil, "", apperr.Wrap(apperr.ErrCodeInvalidInput, err, "read %s", path)
		}
		return doc, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), nil
	}

	cfg, err := c.config()
	if err != nil {
		return nil, "", err
	}
	be, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, "", err
	}
	defer be.close(ctx)

	rec, err := be.Load(ctx, docID)
	if err != nil {
		return nil, "", err
	}
	doc, err := rec.Document()
	if err != nil {
		return nil, "", apperr.Wrap(apperr.ErrCodeStorage, err, "document %s is corrupt", docID)
	}
	return doc, docID, nil
}

// parseFormats splits and validates the --format flag.
func parseFormats(s string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	for _, f := range strings.Split(s, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		if f != formatJSON {
			if _, err := render.ParseFormat(f); err != nil {
				return nil, err
			}
		}
		seen[f] = true
		out = append(out, f)
	}
	if len(out) == 0 {
		return []string{string(render.FormatSVG)}, nil
	}
	return out, nil
}

// outputPath picks the file for one format. With several formats the
// output flag is a base path and each format gets its extension.
func outputPath(output, name, format string, multi bool) string {
	switch {
	case output == "":
		return name + "." + format
	case multi:
		return strings.TrimSuffix(output, filepath.Ext(output)) + "." + format
	}
	return output
}
