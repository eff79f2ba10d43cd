package commands

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/banksim-dev/banksim/internal/bank"
	"github.com/banksim-dev/banksim/internal/ledger"
)

func newAuditCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Check the whole persisted ledger against the account seed",
		Long: `Replay every ledger entry ever recorded from the opening balances in
accounts/accounts.csv and compare the result with the stored balances.
Entries come from the sqlite database when storage.driver is sqlite and
from the CSV ledger otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withService(cmd, func(ctx context.Context, p *project, b *backend, svc *bank.Service) error {
				if b.entries == nil {
					return fmt.Errorf("%w: no ledger is kept (configure ledger.csv_path or the sqlite driver)", bank.ErrHistoryUnsupported)
				}
				entries, err := b.entries(ctx)
				if err != nil {
					return fmt.Errorf("reading ledger: %w", err)
				}

				opening := make(map[int]decimal.Decimal)
				ids := make([]int, 0, len(p.accounts.All()))
				for _, acct := range p.accounts.All() {
					opening[acct.ID] = acct.Balance
					ids = append(ids, acct.ID)
				}
				final, err := balances(ctx, svc, ids)
				if err != nil {
					return err
				}

				problems := ledger.Audit(opening, final, entries)
				p.logger.Info().Str("driver", b.driver).Int("entries", len(entries)).Int("audit_errors", len(problems)).Msg("ledger audited")
				printAudit(cmd.OutOrStdout(), len(entries), problems)
				if len(problems) > 0 {
					return fmt.Errorf("%w: %d problems", errAuditFailed, len(problems))
				}
				return nil
			})
		},
	}
}
