package commands

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/banksim-dev/banksim/internal/bank"
	"github.com/banksim-dev/banksim/internal/model"
)

var accountTypes = []model.AccountType{
	model.AccountTypeChecking,
	model.AccountTypeSavings,
	model.AccountTypeBusiness,
}

func newOpenCommand() *cobra.Command {
	var holder, typ, opening string

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Add an account to accounts/accounts.csv",
		Long: `Add an active account to the project's seed file. It takes the next
free ID and is opened in storage the next time any command runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, err := bank.ParseAmount(opening)
			if err != nil {
				return fmt.Errorf("--opening-balance: %w", err)
			}
			if !slices.Contains(accountTypes, model.AccountType(typ)) {
				return fmt.Errorf("--type must be one of %v, got %q", accountTypes, typ)
			}

			p, err := loadProject(cmd, nil)
			if err != nil {
				return err
			}
			acct := p.accounts.Add(holder, model.AccountType(typ), amount, time.Now())
			if err := p.accounts.Save(p.root); err != nil {
				return err
			}
			p.logger.Info().Int("account_id", acct.ID).Str("type", string(acct.Type)).Msg("account added")
			fmt.Fprintf(cmd.OutOrStdout(), "Opened account %d (%s, %s): %s\n",
				acct.ID, acct.HolderName, acct.Type, acct.Balance.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().StringVar(&holder, "holder", "", `holder name (default "Customer <id>")`)
	cmd.Flags().StringVar(&typ, "type", string(model.AccountTypeChecking), "account type: checking, savings or business")
	cmd.Flags().StringVar(&opening, "opening-balance", "0.00", "opening balance")
	return cmd
}
