package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/banksim-dev/banksim/internal/runlog"
)

func newRunsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "runs",
		Short: "List past simulation runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectRoot(cmd)
			if err != nil {
				return err
			}
			entries, err := runlog.Read(root)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIMESTAMP\tRUN\tWORKERS\tITERATIONS\tATTEMPTS\tAPPLIED\tREJECTED\tFAILED\tAUDIT")
			for _, e := range entries {
				audit := "ok"
				if e.AuditErrors > 0 {
					audit = fmt.Sprintf("%d errors", e.AuditErrors)
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
					e.Timestamp.Format(time.RFC3339), e.RunID, e.Workers, e.Iterations,
					e.Attempts, e.Applied, e.Rejected, e.Failed, audit)
			}
			return tw.Flush()
		},
	}
}
