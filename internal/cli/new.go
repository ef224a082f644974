package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/graph"
	"github.com/matzehuels/mindcanvas/pkg/storage"
)

type newOptions struct {
	title      string
	edgeType   string
	background string
	importPath string
	force      bool
}

// newCommand creates a document holding only the root node, or imports
// one from a JSON file.
func (c *CLI) newCommand() *cobra.Command {
	var opts newOptions

	cmd := &cobra.Command{
		Use:   "new <document-id>",
		Short: "Create a new mind map",
		Long: `Create a new mind map holding only its root node.

With --import the document is read from a JSON file written by
'mindcanvas export -f json' instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runNew(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.title, "title", "t", "", "document title (default: the document id)")
	cmd.Flags().StringVar(&opts.edgeType, "edge-type", string(graph.EdgeDefault), "edge routing: default, straight, step, smoothstep, bezier")
	cmd.Flags().StringVar(&opts.background, "background", "", "canvas background colour")
	cmd.Flags().StringVar(&opts.importPath, "import", "", "read the document from a JSON file")
	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "overwrite an existing document")

	return cmd
}

func (c *CLI) runNew(ctx context.Context, docID string, opts newOptions) error {
	if err := apperr.ValidateDocumentID(docID); err != nil {
		return err
	}
	cfg, err := c.config()
	if err != nil {
		return err
	}

	doc, err := newDocument(docID, opts)
	if err != nil {
		return err
	}

	be, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer be.close(ctx)

	if !opts.force {
		_, err := be.Load(ctx, docID)
		if err == nil {
			return apperr.New(apperr.ErrCodeInvalidInput, "document %s already exists (use --force to overwrite)", docID)
		}
		if !apperr.Is(err, apperr.ErrCodeNotFound) {
			return err
		}
	}

	if err := be.Save(ctx, storage.RecordOf(docID, cfg.Editor.UserID, doc)); err != nil {
		return err
	}
	c.logger(ctx).Debug("created document", "doc", docID, "backend", be.name)

	printSuccess("Created %s", StyleHighlight.Render(doc.Title))
	printStats(doc.NodeCount(), doc.EdgeCount(), false)
	printNewline()
	printNextStep("Edit", appName+" edit "+docID)
	return nil
}

func newDocument(docID string, opts newOptions) (*graph.Document, error) {
	var doc *graph.Document
	if opts.importPath != "" {
		d, err := graph.ReadFile(opts.importPath)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeInvalidInput, err, "import %s", opts.importPath)
		}
		doc = d
	} else {
		title := strings.TrimSpace(opts.title)
		if title == "" {
			title = docID
		}
		doc = graph.NewWithRoot(title)
	}

	if opts.title != "" {
		doc.Title = strings.TrimSpace(opts.title)
	}
	if opts.edgeType != "" {
		t := graph.EdgeType(opts.edgeType)
		if !t.Valid() {
			return nil, apperr.New(apperr.ErrCodeInvalidInput, "unknown edge type %q", opts.edgeType)
		}
		doc.Settings.EdgeType = t
	}
	if opts.background != "" {
		if err := apperr.ValidateColor(opts.background); err != nil {
			return nil, err
		}
		doc.Settings.BackgroundColor = opts.background
	}
	return doc, nil
}
