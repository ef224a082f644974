package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mindcanvas/pkg/storage"
)

// completionCommand creates the completion command for generating shell completions.
func (c *CLI) completionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for mindcanvas.

Bash:
  $ source <(mindcanvas completion bash)

Zsh:
  $ mindcanvas completion zsh > "${fpath[1]}/_mindcanvas"

Fish:
  $ mindcanvas completion fish > ~/.config/fish/completions/mindcanvas.fish

PowerShell:
  PS> mindcanvas completion powershell | Out-String | Invoke-Expression

Document ids are completed from the configured storage.
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}

	return cmd
}

// completeDocumentIDs suggests stored document ids for the first argument.
// It stays silent when the backend cannot list.
func (c *CLI) completeDocumentIDs(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	cfg, err := c.config()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	be, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	defer be.close(ctx)

	lister, ok := be.Persister.(storage.Lister)
	if !ok {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	docs, err := lister.List(ctx)
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.DocumentID+"\t"+d.Title)
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}
