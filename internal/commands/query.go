package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/banksim-dev/banksim/internal/bank"
	"github.com/banksim-dev/banksim/internal/id"
	"github.com/banksim-dev/banksim/internal/ledger"
	"github.com/banksim-dev/banksim/internal/model"
)

// withService loads the project, opens storage and seeds it before calling fn.
func withService(cmd *cobra.Command, fn func(ctx context.Context, p *project, b *backend, svc *bank.Service) error) error {
	p, err := loadProject(cmd, nil)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	b, err := p.openBackend(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			p.logger.Error().Err(err).Msg("closing storage")
		}
	}()

	svc := p.newService(b)
	if err := p.seed(ctx, svc, b); err != nil {
		return err
	}
	return fn(ctx, p, b, svc)
}

func newBalanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <account-id>",
		Short: "Show an account's current balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acctID, err := id.ParseAccountID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, _ *project, _ *backend, svc *bank.Service) error {
				acct, err := svc.Account(ctx, acctID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Account %d (%s, %s, %s): %s\n",
					acct.ID, acct.HolderName, acct.Type, acct.Status, acct.Balance.StringFixed(2))
				return nil
			})
		},
	}
}

func newHistoryCommand() *cobra.Command {
	var asJSON, asCSV bool

	cmd := &cobra.Command{
		Use:   "history <account-id>",
		Short: "List an account's ledger entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acctID, err := id.ParseAccountID(args[0])
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, _ *project, b *backend, svc *bank.Service) error {
				if _, err := svc.Account(ctx, acctID); err != nil {
					return err
				}
				if b.history == nil {
					return fmt.Errorf("account %d: %w (configure ledger.csv_path or the sqlite driver)", acctID, bank.ErrHistoryUnsupported)
				}
				txns, err := b.history.History(ctx, acctID)
				if err != nil {
					return fmt.Errorf("reading history: %w", err)
				}
				switch {
				case asJSON:
					return printJSON(cmd, txns)
				case asCSV:
					if err := ledger.WriteTransactions(cmd.OutOrStdout(), txns); err != nil {
						return fmt.Errorf("writing history: %w", err)
					}
					return nil
				}
				printHistory(cmd, acctID, txns)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "print entries in the ledger's CSV format")
	cmd.MarkFlagsMutuallyExclusive("json", "csv")
	return cmd
}

func printJSON(cmd *cobra.Command, txns []model.Transaction) error {
	if txns == nil {
		txns = []model.Transaction{}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(txns); err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}
	return nil
}

func printHistory(cmd *cobra.Command, acctID int, txns []model.Transaction) {
	out := cmd.OutOrStdout()
	if len(txns) == 0 {
		fmt.Fprintf(out, "No transactions for account %d.\n", acctID)
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tTYPE\tAMOUNT\tBALANCE\tSTATUS")
	for _, txn := range txns {
		status := "ok"
		if txn.Error {
			status = "rejected"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			txn.Timestamp.Format("2006-01-02 15:04:05.000"), txn.Type,
			txn.Amount.StringFixed(2), txn.BalanceAfter.StringFixed(2), status)
	}
	tw.Flush()

	sum := ledger.Summarize(txns)
	fmt.Fprintf(out, "\n%d entries: %d deposits (%s), %d withdrawals (%s), %d rejected\n",
		sum.Entries, sum.Deposits, sum.Deposited.StringFixed(2),
		sum.Withdrawals, sum.Withdrawn.StringFixed(2), sum.Rejected)
}
