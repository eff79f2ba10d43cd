package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/banksim-dev/banksim/internal/accounts"
	"github.com/banksim-dev/banksim/internal/bank"
	"github.com/banksim-dev/banksim/internal/config"
	"github.com/banksim-dev/banksim/internal/id"
)

func newInitCommand() *cobra.Command {
	var numAccounts int
	var opening string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new banksim project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			amount, err := bank.ParseAmount(opening)
			if err != nil {
				return fmt.Errorf("--opening-balance: %w", err)
			}
			if numAccounts < 1 {
				return fmt.Errorf("--accounts must be at least 1, got %d", numAccounts)
			}

			if err := runInit(absDir, numAccounts, amount); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized banksim project at %s (%d accounts)\n", absDir, numAccounts)
			return nil
		},
	}

	cmd.Flags().IntVar(&numAccounts, "accounts", 5, "number of accounts to create")
	cmd.Flags().StringVar(&opening, "opening-balance", "1000.00", "opening balance of every account")

	return cmd
}

func runInit(dir string, numAccounts int, opening decimal.Decimal) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", cfgPath, err)
	}

	// Create directory structure.
	for _, d := range []string{"accounts", "ledger", "logs", "data"} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	// Write banksim.yaml.
	cfg := config.Default()
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Write the account seed.
	accts := accounts.DefaultAccounts(numAccounts, opening, id.NewSequence(1), time.Now())
	if err := accounts.NewService(accts).Save(dir); err != nil {
		return fmt.Errorf("writing accounts: %w", err)
	}

	gitignore := "data/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	return nil
}
