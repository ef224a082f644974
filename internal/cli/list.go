package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	apperr "github.com/matzehuels/mindcanvas/pkg/errors"
	"github.com/matzehuels/mindcanvas/pkg/storage"
)

// listCommand prints the stored documents, newest first.
func (c *CLI) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored mind maps",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runList(cmd.Context())
		},
	}
}

func (c *CLI) runList(ctx context.Context) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	be, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer be.close(ctx)

	lister, ok := be.Persister.(storage.Lister)
	if !ok {
		return apperr.New(apperr.ErrCodeUnsupported, "%s storage cannot list documents", be.name)
	}
	sums, err := lister.List(ctx)
	if err != nil {
		return err
	}
	if len(sums) == 0 {
		printInfo("No documents in %s", be.where)
		printNextStep("Create one", appName+" new <document-id>")
		return nil
	}
	fmt.Println(documentTable(sums, time.Now()))
	return nil
}

func documentTable(sums []storage.Summary, now time.Time) string {
	rows := make([][]string, len(sums))
	for i, s := range sums {
		rows[i] = []string{s.DocumentID, s.Title, formatRelativeTime(s.UpdatedAt, now)}
	}
	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Document", "Title", "Updated").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle.Padding(0, 1)
			}
			if col == 0 {
				return StyleHighlight.Padding(0, 1)
			}
			return StyleValue.Padding(0, 1)
		}).
		String()
}

// formatRelativeTime renders t relative to now, e.g. "5m ago".
func formatRelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "—"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
	return t.Format("2006-01-02")
}
