package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mindcanvas/pkg/editor"
	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/graph"
)

type layoutOptions struct {
	node           string
	levelSpacing   float64
	nodeSpacing    float64
	subtreeSpacing float64
	grid           float64
	dryRun         bool
}

// layoutCommand re-arranges the subtree below a node and saves the result.
func (c *CLI) layoutCommand() *cobra.Command {
	var opts layoutOptions

	cmd := &cobra.Command{
		Use:   "layout <document-id>",
		Short: "Auto-layout a subtree of a mind map",
		Long: `Auto-layout the descendants of a node (the root by default).

Children are spread below their parent; nodes with many leaf children get
their leaves packed into rows. Positions snap to the grid. The node itself
does not move. The change is saved unless --dry-run is given.

Spacing flags override the [layout] section of the config file.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeDocumentIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.node, "node", "n", graph.RootID, "node whose subtree is laid out")
	cmd.Flags().Float64Var(&opts.levelSpacing, "level-spacing", 0, "minimum vertical gap between levels")
	cmd.Flags().Float64Var(&opts.nodeSpacing, "node-spacing", 0, "gap between leaf siblings")
	cmd.Flags().Float64Var(&opts.subtreeSpacing, "subtree-spacing", 0, "gap next to siblings with children")
	cmd.Flags().Float64Var(&opts.grid, "grid", 0, "snap grid (0 keeps the configured grid)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report what would move without saving")

	return cmd
}

func (c *CLI) runLayout(cmd *cobra.Command, docID string, opts layoutOptions) error {
	ctx := cmd.Context()
	cfg, err := c.config()
	if err != nil {
		return err
	}

	lay := cfg.Layout
	flags := cmd.Flags()
	if flags.Changed("level-spacing") {
		lay.LevelSpacing = opts.levelSpacing
	}
	if flags.Changed("node-spacing") {
		lay.NodeSpacing = opts.nodeSpacing
	}
	if flags.Changed("subtree-spacing") {
		lay.SubtreeSpacing = opts.subtreeSpacing
	}
	if flags.Changed("grid") {
		lay.Grid = opts.grid
	}

	be, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer be.close(ctx)

	if _, err := be.Load(ctx, docID); err != nil {
		return err
	}
	store, err := editor.Open(ctx, be, editor.Options{
		DocumentID: docID,
		UserID:     cfg.Editor.UserID,
		Logger:     c.logger(ctx),
		Layout:     lay,
	})
	if err != nil {
		return err
	}
	if _, ok := store.Node(opts.node); !ok {
		return apperr.New(apperr.ErrCodeNotFound, "node %s not found in %s", opts.node, docID)
	}

	prog := newProgress(c.logger(ctx))
	moved, _ := store.AutoLayout(opts.node)
	prog.done(fmt.Sprintf("Laid out %d nodes", moved))

	if moved == 0 {
		printInfo("Nothing to move below node %s", opts.node)
		return nil
	}
	if opts.dryRun {
		printInfo("Would move %d nodes (dry run)", moved)
		return nil
	}
	if err := store.Save(ctx); err != nil {
		return err
	}

	snap := store.Snapshot()
	printSuccess("Moved %d nodes below %s", moved, StyleHighlight.Render(opts.node))
	printStats(len(snap.Nodes), len(snap.Edges), store.HasUnsavedChanges())
	printNewline()
	printNextStep("Export", appName+" export "+docID+" -f svg")
	return nil
}
