package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mindcanvas/pkg/collab"
	"github.com/matzehuels/mindcanvas/pkg/editor"
	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
)

type editOptions struct {
	transport string
	user      string
	logFile   string
	noSave    bool
}

// editCommand opens a document in the interactive outline editor.
func (c *CLI) editCommand() *cobra.Command {
	var opts editOptions

	cmd := &cobra.Command{
		Use:   "edit <document-id>",
		Short: "Edit a mind map interactively",
		Long: `Edit a mind map in the terminal.

The map is shown as an outline below its root. Edits are undoable, saved
every autosave interval and on exit, and shared live with everyone editing
the same document over the configured transport.

Keys:
  ↑/↓ j/k    move the cursor        a enter    add a child
  r          rename                 t          rename the map
  space      toggle selection       c          node color
  H/J/K/L    nudge selection        i          add an image by URL
  l          auto-layout subtree    e          cycle edge routing
  / ctrl+f   search                 ctrl+s     save
  ctrl+z     undo                   ctrl+y     redo
  ctrl+c/x/v copy, cut, paste       del        delete selection
  esc        cancel                 ctrl+q     quit`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeDocumentIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runEdit(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", "", "collaboration transport: none, redis, nats, websocket (default from config)")
	cmd.Flags().StringVar(&opts.user, "user", "", "user id shown to collaborators (default from config)")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "write logs to this file while the editor runs")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "do not save on exit")

	return cmd
}

func (c *CLI) runEdit(ctx context.Context, docID string, opts editOptions) error {
	if err := apperr.ValidateDocumentID(docID); err != nil {
		return err
	}
	cfg, err := c.config()
	if err != nil {
		return err
	}
	userID := opts.user
	if userID == "" {
		cfg.EnsureUserID()
		userID = cfg.Editor.UserID
	}
	transport := opts.transport
	if transport == "" {
		transport = cfg.Collab.Transport
	}

	// The terminal belongs to the editor; logs go to a file or nowhere.
	var w io.Writer = io.Discard
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return apperr.Wrap(apperr.ErrCodeInvalidPath, err, "open log file")
		}
		defer f.Close()
		w = f
	}
	logger := newLogger(w, c.Logger.GetLevel())

	be, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer be.close(context.Background())

	ch, err := openChannel(ctx, transport, cfg.Collab, userID, logger)
	if err != nil {
		return err
	}
	if ch != nil {
		defer ch.Close()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	storeOpts := editor.Options{
		DocumentID:   docID,
		UserID:       userID,
		Logger:       logger,
		Layout:       cfg.Layout,
		HistoryLimit: cfg.Editor.HistoryLimit,
		LiveDrag:     cfg.Editor.LiveDrag,
	}
	var session *collab.Session
	if ch != nil {
		session = collab.NewSession(ch, docID, userID, collab.WithLogger(logger))
		storeOpts.Broadcaster = session
	}

	store, err := editor.Open(ctx, be, storeOpts)
	if err != nil {
		return err
	}

	peers := ""
	if ch != nil {
		peers = ch.Name()
	}
	model := newEditorModel(ctx, store, cfg.Editor.Autosave.D(), peers)
	prog := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if session != nil {
		go func() {
			err := session.Run(ctx, func(ev collab.Event) { prog.Send(remoteMsg{ev}) })
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("collaboration stopped", "transport", ch.Name(), "err", err)
			}
		}()
	}

	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return apperr.Wrap(apperr.ErrCodeInternal, err, "editor")
	}

	// The program has exited, so the store is no longer shared.
	if store.HasUnsavedChanges() && !opts.noSave {
		saveCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		if err := store.Save(saveCtx); err != nil {
			printError("Could not save %s: %s", docID, apperr.UserMessage(err))
			return err
		}
	}

	snap := store.Snapshot()
	printSuccess("Closed %s", StyleHighlight.Render(store.Title()))
	printStats(len(snap.Nodes), len(snap.Edges), store.HasUnsavedChanges())
	c.Logger.Debug("edit session ended", "doc", docID, "user", userID, "transport", transport)
	return nil
}
