package commands

import (
	"github.com/spf13/cobra"

	"github.com/banksim-dev/banksim/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "banksim",
		Short:   "Concurrent bank account simulator",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("dir", "C", ".", "project directory")
	rootCmd.PersistentFlags().String("log-level", "", "override log.level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newInitCommand(),
		newOpenCommand(),
		newSimulateCommand(),
		newBalanceCommand(),
		newHistoryCommand(),
		newAuditCommand(),
		newServeCommand(),
		newWatchCommand(),
		newRunsCommand(),
	)

	return rootCmd
}
