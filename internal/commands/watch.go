package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/banksim-dev/banksim/internal/model"
	"github.com/banksim-dev/banksim/internal/stream"
)

func newWatchCommand() *cobra.Command {
	var accountID int
	var group string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow ledger entries published to Kafka",
		Long: `Consume the ledger topic configured under ledger.kafka and print each
entry as it arrives, until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := loadProject(cmd, nil)
			if err != nil {
				return err
			}
			if !p.cfg.KafkaEnabled() {
				return fmt.Errorf("ledger.kafka.brokers is not configured")
			}

			kc := p.cfg.Ledger.Kafka
			r := stream.NewReader(kc.Brokers, kc.Topic, group)
			defer func() {
				if err := r.Close(); err != nil {
					p.logger.Error().Err(err).Msg("closing kafka reader")
				}
			}()
			p.logger.Info().Strs("brokers", kc.Brokers).Str("topic", kc.Topic).Str("group", group).Msg("watching ledger")

			out := cmd.OutOrStdout()
			return stream.Consume(ctx, r, p.logger, func(txn model.Transaction) error {
				if accountID != 0 && txn.AccountID != accountID {
					return nil
				}
				status := "ok"
				if txn.Error {
					status = "rejected"
				}
				_, err := fmt.Fprintf(out, "%s  account %d  %s %s  balance %s  %s\n",
					txn.Timestamp.Format("2006-01-02 15:04:05.000"), txn.AccountID, txn.Type,
					txn.Amount.StringFixed(2), txn.BalanceAfter.StringFixed(2), status)
				return err
			})
		},
	}

	cmd.Flags().IntVar(&accountID, "account", 0, "only show entries for this account")
	cmd.Flags().StringVar(&group, "group", "banksim-watch", "kafka consumer group")
	return cmd
}
